package query

import (
	"context"
	"fmt"
	"maps"
	"time"
)

// Kind distinguishes queries from mutations.
type Kind string

const (
	// KindQuery marks a cached, argument-keyed read endpoint.
	KindQuery Kind = "query"
	// KindMutation marks an uncached write endpoint.
	KindMutation Kind = "mutation"
)

// Header holds request headers.
type Header map[string]string

// Clone returns a copy of h. Clone of a nil Header is an empty Header.
func (h Header) Clone() Header {
	out := make(Header, len(h))
	maps.Copy(out, h)
	return out
}

// Request describes one transport call.
type Request struct {
	URL     string
	Method  string
	Body    any
	Headers Header
	Params  map[string]string
}

// URLRequest is the bare-URL form of a request.
func URLRequest(url string) Request {
	return Request{URL: url}
}

// Result is the outcome of a transport call or pipeline run. Error is nil on
// success.
type Result struct {
	Data  any
	Error error
}

// OK reports whether the result carries data.
func (r Result) OK() bool {
	return r.Error == nil
}

// BaseQuery performs the transport call. It should report ordinary failures
// through Result.Error rather than panic.
type BaseQuery func(ctx context.Context, req Request) Result

// Endpoint is an immutable, type-erased endpoint definition. Build one with
// Query or Mutation.
type Endpoint struct {
	kind                    Kind
	build                   func(arg any) (Request, error)
	queryFn                 func(ctx context.Context, arg any, base BaseQuery) Result
	transformRequestBody    func(body any) any
	transformRequestHeaders func(Header) Header
	transformResponse       func(current, previous any) (any, error)
	transformError          func(current, previous error) error
	onSuccess               func(ctx context.Context, data any) error
	onError                 func(ctx context.Context, err error) error
	providesTags            func(data any) []Tag
	invalidatesTags         func(data any) []Tag
	middleware              []Middleware
	plugins                 []Plugin
	cacheTimeout            time.Duration
}

// Endpoints maps endpoint names to definitions.
type Endpoints map[string]Endpoint

// Kind returns the endpoint kind.
func (e *Endpoint) Kind() Kind {
	return e.kind
}

// CacheTimeout returns the endpoint's own cache timeout, zero when the API
// default applies.
func (e *Endpoint) CacheTimeout() time.Duration {
	return e.cacheTimeout
}

func (e *Endpoint) validate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty endpoint name", ErrInvalidEndpoint)
	}
	if e.kind != KindQuery && e.kind != KindMutation {
		return fmt.Errorf("%w: %s has no kind, build it with Query or Mutation", ErrInvalidEndpoint, name)
	}
	if e.build == nil && e.queryFn == nil {
		return fmt.Errorf("%w: %s needs Build or QueryFn", ErrInvalidEndpoint, name)
	}
	return nil
}

// request builds the transport request and applies the request transforms.
func (e *Endpoint) request(arg any) (Request, error) {
	req, err := e.build(arg)
	if err != nil {
		return Request{}, err
	}
	if e.transformRequestHeaders != nil {
		req.Headers = e.transformRequestHeaders(req.Headers.Clone())
	}
	if e.transformRequestBody != nil {
		req.Body = e.transformRequestBody(req.Body)
	}
	return req, nil
}

func (e *Endpoint) tagsFor(data any) []Tag {
	if e.providesTags == nil {
		return nil
	}
	return e.providesTags(data)
}

// QueryDef declares a query endpoint taking A and producing R.
type QueryDef[A, R any] struct {
	// Build maps the argument to a transport request.
	Build func(arg A) Request
	// QueryFn replaces Build and calls the transport itself.
	QueryFn func(ctx context.Context, arg A, base BaseQuery) Result

	TransformRequestBody    func(body any) any
	TransformRequestHeaders func(Header) Header
	// TransformResponse converts transport data into R. Without it the data
	// is asserted to R, or JSON-decoded when it is raw JSON.
	TransformResponse func(current any, previous R) (R, error)
	TransformError    func(current, previous error) error

	OnSuccess func(ctx context.Context, data R) error
	OnError   func(ctx context.Context, err error) error

	ProvidesTags Provides[R]

	Middleware []Middleware
	Plugins    []Plugin

	// CacheTimeout overrides the API cache timeout for this endpoint.
	CacheTimeout time.Duration
}

// MutationDef declares a mutation endpoint taking A and producing R.
type MutationDef[A, R any] struct {
	Build   func(arg A) Request
	QueryFn func(ctx context.Context, arg A, base BaseQuery) Result

	TransformRequestBody    func(body any) any
	TransformRequestHeaders func(Header) Header
	TransformResponse       func(current any, previous R) (R, error)
	TransformError          func(current, previous error) error

	OnSuccess func(ctx context.Context, data R) error
	OnError   func(ctx context.Context, err error) error

	ProvidesTags Provides[R]
	// InvalidatesTags is evaluated after a successful mutation and the
	// resulting tags are invalidated on the owning API.
	InvalidatesTags Provides[R]

	Middleware []Middleware
	Plugins    []Plugin
}

// Query builds a query endpoint.
func Query[A, R any](def QueryDef[A, R]) Endpoint {
	e := erase(hooks[A, R]{
		build:                   def.Build,
		queryFn:                 def.QueryFn,
		transformRequestBody:    def.TransformRequestBody,
		transformRequestHeaders: def.TransformRequestHeaders,
		transformResponse:       def.TransformResponse,
		transformError:          def.TransformError,
		onSuccess:               def.OnSuccess,
		onError:                 def.OnError,
		providesTags:            def.ProvidesTags,
		middleware:              def.Middleware,
		plugins:                 def.Plugins,
	})
	e.kind = KindQuery
	e.cacheTimeout = def.CacheTimeout
	return e
}

// Mutation builds a mutation endpoint.
func Mutation[A, R any](def MutationDef[A, R]) Endpoint {
	e := erase(hooks[A, R]{
		build:                   def.Build,
		queryFn:                 def.QueryFn,
		transformRequestBody:    def.TransformRequestBody,
		transformRequestHeaders: def.TransformRequestHeaders,
		transformResponse:       def.TransformResponse,
		transformError:          def.TransformError,
		onSuccess:               def.OnSuccess,
		onError:                 def.OnError,
		providesTags:            def.ProvidesTags,
		middleware:              def.Middleware,
		plugins:                 def.Plugins,
	})
	e.kind = KindMutation
	if def.InvalidatesTags != nil {
		e.invalidatesTags = tagsOf(def.InvalidatesTags)
	}
	return e
}

type hooks[A, R any] struct {
	build                   func(arg A) Request
	queryFn                 func(ctx context.Context, arg A, base BaseQuery) Result
	transformRequestBody    func(body any) any
	transformRequestHeaders func(Header) Header
	transformResponse       func(current any, previous R) (R, error)
	transformError          func(current, previous error) error
	onSuccess               func(ctx context.Context, data R) error
	onError                 func(ctx context.Context, err error) error
	providesTags            Provides[R]
	middleware              []Middleware
	plugins                 []Plugin
}

func erase[A, R any](h hooks[A, R]) Endpoint {
	e := Endpoint{
		transformRequestBody:    h.transformRequestBody,
		transformRequestHeaders: h.transformRequestHeaders,
		transformError:          h.transformError,
		onError:                 h.onError,
		middleware:              append([]Middleware(nil), h.middleware...),
		plugins:                 append([]Plugin(nil), h.plugins...),
	}

	if h.build != nil {
		build := h.build
		e.build = func(arg any) (Request, error) {
			a, err := decodeAs[A](arg)
			if err != nil {
				return Request{}, fmt.Errorf("argument: %w", err)
			}
			return build(a), nil
		}
	}

	if h.queryFn != nil {
		queryFn := h.queryFn
		e.queryFn = func(ctx context.Context, arg any, base BaseQuery) Result {
			a, err := decodeAs[A](arg)
			if err != nil {
				return Result{Error: fmt.Errorf("argument: %w", err)}
			}
			return queryFn(ctx, a, base)
		}
	}

	transform := h.transformResponse
	e.transformResponse = func(current, previous any) (any, error) {
		if transform == nil {
			return decodeAs[R](current)
		}
		prev, _ := previous.(R)
		return transform(current, prev)
	}

	if h.onSuccess != nil {
		onSuccess := h.onSuccess
		e.onSuccess = func(ctx context.Context, data any) error {
			r, _ := data.(R)
			return onSuccess(ctx, r)
		}
	}

	if h.providesTags != nil {
		e.providesTags = tagsOf(h.providesTags)
	}

	return e
}

func tagsOf[R any](p Provides[R]) func(any) []Tag {
	return func(data any) []Tag {
		r, _ := data.(R)
		return p(r)
	}
}
