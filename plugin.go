package query

// Plugin provides hooks around every pipeline run it is registered for.
// Hooks run sequentially in registration order: API plugins first, then
// endpoint plugins. A returned error aborts the run and is reported as a
// *PluginError fault.
type Plugin interface {
	// Name returns the plugin's name
	Name() string

	// BeforeQuery runs before the middleware chain
	BeforeQuery(rc *RequestCtx) error

	// AfterQuery runs with the result of every run
	AfterQuery(res Result, rc *RequestCtx) error

	// OnError runs after AfterQuery when the result carries an error
	OnError(err error, rc *RequestCtx) error
}

// MiddlewareProvider is implemented by plugins that contribute middleware.
// Their middleware is appended after the API and endpoint middleware.
type MiddlewareProvider interface {
	Middleware() []Middleware
}

// BasePlugin provides default implementations for Plugin methods
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a new base plugin with the given name
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p *BasePlugin) Name() string {
	return p.name
}

func (p *BasePlugin) BeforeQuery(rc *RequestCtx) error {
	return nil
}

func (p *BasePlugin) AfterQuery(res Result, rc *RequestCtx) error {
	return nil
}

func (p *BasePlugin) OnError(err error, rc *RequestCtx) error {
	return nil
}
