package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// DefaultCacheTimeout is how long query data stays fresh unless configured.
const DefaultCacheTimeout = 60 * time.Second

// API owns a set of endpoints and the cache entries created for them.
type API struct {
	mu              sync.RWMutex
	base            BaseQuery
	endpoints       map[string]*Endpoint
	accessors       map[string]string
	entries         *TypeSafeCache[*entry]
	middleware      []Middleware
	plugins         []Plugin
	storeMiddleware []StoreMiddleware[EntryState]
	cacheTimeout    time.Duration
	tagTypes        map[string]struct{}
	keys            *KeyBuilder
	now             func() time.Time
	logger          *slog.Logger
}

// Option is a modifier for APIs
type Option func(*API)

// WithCacheTimeout sets how long query results are served from cache.
func WithCacheTimeout(d time.Duration) Option {
	return func(a *API) {
		a.cacheTimeout = d
	}
}

// WithMiddleware appends API-wide middleware. It runs before endpoint
// middleware.
func WithMiddleware(mws ...Middleware) Option {
	return func(a *API) {
		a.middleware = append(a.middleware, mws...)
	}
}

// WithPlugin appends API-wide plugins.
func WithPlugin(plugins ...Plugin) Option {
	return func(a *API) {
		a.plugins = append(a.plugins, plugins...)
	}
}

// WithStoreMiddleware wraps the Set of every cache entry store.
func WithStoreMiddleware(mws ...StoreMiddleware[EntryState]) Option {
	return func(a *API) {
		a.storeMiddleware = append(a.storeMiddleware, mws...)
	}
}

// WithTagTypes declares the tag types endpoints are expected to use. Other
// types are still accepted; they are only logged.
func WithTagTypes(types ...string) Option {
	return func(a *API) {
		for _, t := range types {
			a.tagTypes[t] = struct{}{}
		}
	}
}

// WithSerializer replaces the argument serializer used for cache keys.
func WithSerializer(s Serializer) Option {
	return func(a *API) {
		a.keys = NewKeyBuilder(s)
	}
}

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		a.logger = l
	}
}

// CreateAPI builds an API over base with the given endpoints.
func CreateAPI(base BaseQuery, endpoints Endpoints, opts ...Option) (*API, error) {
	a := &API{
		base:         base,
		endpoints:    make(map[string]*Endpoint),
		accessors:    make(map[string]string),
		entries:      NewTypeSafeCache[*entry](),
		cacheTimeout: DefaultCacheTimeout,
		tagTypes:     make(map[string]struct{}),
		keys:         defaultKeys,
		now:          time.Now,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.base == nil {
		return nil, fmt.Errorf("%w: base query is nil", ErrInvalidEndpoint)
	}

	if err := a.InjectEndpoints(endpoints); err != nil {
		return nil, err
	}
	return a, nil
}

// InjectEndpoints registers more endpoints. Existing accessors keep working;
// re-registering a name replaces the definition used for entries created
// afterwards.
func (a *API) InjectEndpoints(endpoints Endpoints) error {
	for name, def := range endpoints {
		if err := def.validate(name); err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for name, def := range endpoints {
		d := def
		a.endpoints[name] = &d
		a.accessors[AccessorName(name, d.kind)] = name
	}
	return nil
}

// AccessorName derives the accessor name of an endpoint: the capitalized
// endpoint name suffixed with "Query" or "Mutation".
func AccessorName(endpoint string, kind Kind) string {
	suffix := "Query"
	if kind == KindMutation {
		suffix = "Mutation"
	}
	if endpoint == "" {
		return suffix
	}
	r, size := utf8.DecodeRuneInString(endpoint)
	return string(unicode.ToUpper(r)) + endpoint[size:] + suffix
}

// Accessors lists every accessor name.
func (a *API) Accessors() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.accessors))
	for name := range a.accessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoint returns the definition registered under name.
func (a *API) Endpoint(name string) (*Endpoint, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	def, ok := a.endpoints[name]
	return def, ok
}

// Query returns a new activation of the query accessor with the given name.
func (a *API) Query(accessor string) (*QueryAccessor, error) {
	name, _, err := a.resolve(accessor, KindQuery)
	if err != nil {
		return nil, err
	}
	return &QueryAccessor{api: a, name: name}, nil
}

// Mutation returns the mutation accessor with the given name.
func (a *API) Mutation(accessor string) (*MutationAccessor, error) {
	name, _, err := a.resolve(accessor, KindMutation)
	if err != nil {
		return nil, err
	}
	return &MutationAccessor{api: a, name: name}, nil
}

func (a *API) resolve(accessor string, kind Kind) (string, *Endpoint, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	name, ok := a.accessors[accessor]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownAccessor, accessor)
	}
	def := a.endpoints[name]
	if def.kind != kind {
		return "", nil, fmt.Errorf("%w: %s is a %s", ErrKindMismatch, accessor, def.kind)
	}
	return name, def, nil
}

func (a *API) definition(name string) (*Endpoint, error) {
	def, ok := a.Endpoint(name)
	if !ok {
		return nil, fmt.Errorf("%w: endpoint %s", ErrUnknownAccessor, name)
	}
	return def, nil
}

// entryFor returns the cache entry for name and arg, creating it on first
// use. Mutations have a single entry keyed by the endpoint name.
func (a *API) entryFor(name string, def *Endpoint, arg any) *entry {
	key := name
	if def.kind == KindQuery {
		key = a.keys.Key(name, arg)
	}
	e, loaded := a.entries.LoadOrStore(key, func() *entry {
		return &entry{
			name:  name,
			key:   key,
			arg:   arg,
			def:   def,
			store: NewStore(EntryState{}, a.storeMiddleware...),
		}
	})
	if !loaded {
		a.logger.Debug("cache entry created", "endpoint", name, "key", key)
	}
	return e
}

// checkTags logs tags whose type was not declared with WithTagTypes.
func (a *API) checkTags(endpoint string, tags []Tag) {
	if len(a.tagTypes) == 0 {
		return
	}
	for _, t := range tags {
		if _, ok := a.tagTypes[t.Type]; !ok {
			a.logger.Warn("undeclared tag type", "endpoint", endpoint, "tag", t.String())
		}
	}
}

func (a *API) timeoutFor(def *Endpoint) time.Duration {
	if def.kind == KindMutation {
		return 0
	}
	if def.cacheTimeout > 0 {
		return def.cacheTimeout
	}
	return a.cacheTimeout
}

// EntryInfo describes one cache entry.
type EntryInfo struct {
	Endpoint string
	Key      string
	Kind     Kind
	State    EntryState
}

// Entries returns every cache entry, sorted by key.
func (a *API) Entries() []EntryInfo {
	keys := a.entries.Keys()
	infos := make([]EntryInfo, 0, len(keys))
	for _, key := range keys {
		e, ok := a.entries.Load(key)
		if !ok {
			continue
		}
		infos = append(infos, EntryInfo{
			Endpoint: e.name,
			Key:      e.key,
			Kind:     e.def.kind,
			State:    e.store.Get(),
		})
	}
	return infos
}

// Select returns the snapshot of the entry for endpoint and arg without
// running anything.
func (a *API) Select(endpoint string, arg any) (Snapshot, error) {
	def, err := a.definition(endpoint)
	if err != nil {
		return Snapshot{}, err
	}
	return a.snapshot(a.entryFor(endpoint, def, arg)), nil
}

func (a *API) snapshot(e *entry) Snapshot {
	if e.def.kind == KindMutation {
		return newSnapshot(e.store.Get(), nil)
	}
	return newSnapshot(e.store.Get(), func(ctx context.Context) (Result, error) {
		return a.run(ctx, e, e.arg, true, a.timeoutFor(e.def))
	})
}
