package query

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tracePlugin struct {
	BasePlugin
	mu    sync.Mutex
	trace *[]string
	mws   []Middleware

	beforeErr error
	afterErr  error
	onErrErr  error
}

func newTracePlugin(name string, trace *[]string) *tracePlugin {
	return &tracePlugin{BasePlugin: NewBasePlugin(name), trace: trace}
}

func (p *tracePlugin) record(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.trace = append(*p.trace, p.Name()+":"+s)
}

func (p *tracePlugin) BeforeQuery(rc *RequestCtx) error {
	p.record("before")
	return p.beforeErr
}

func (p *tracePlugin) AfterQuery(res Result, rc *RequestCtx) error {
	p.record("after")
	return p.afterErr
}

func (p *tracePlugin) OnError(err error, rc *RequestCtx) error {
	p.record("error")
	return p.onErrErr
}

func (p *tracePlugin) Middleware() []Middleware {
	return p.mws
}

func tracing(name string, trace *[]string) Middleware {
	return func(rc *RequestCtx, next Next) (Result, error) {
		*trace = append(*trace, name+":in")
		res, err := next()
		*trace = append(*trace, name+":out")
		return res, err
	}
}

func TestPipeline_Order(t *testing.T) {
	var trace []string
	api := mustAPI(t, func(ctx context.Context, req Request) Result {
		trace = append(trace, "transport")
		return Result{Data: user{ID: 1}}
	}, Endpoints{
		"getUser": Query(QueryDef[int, user]{
			Build:      func(int) Request { return URLRequest("/users/1") },
			Middleware: []Middleware{tracing("endpoint-mw", &trace)},
			Plugins:    []Plugin{newTracePlugin("endpoint-plugin", &trace)},
		}),
	},
		WithMiddleware(tracing("global-mw", &trace)),
		WithPlugin(func() Plugin {
			p := newTracePlugin("global-plugin", &trace)
			p.mws = []Middleware{tracing("plugin-mw", &trace)}
			return p
		}()),
	)

	mustUse(t, api, "GetUserQuery", 1)

	assert.Equal(t, []string{
		"global-plugin:before",
		"endpoint-plugin:before",
		"global-mw:in",
		"endpoint-mw:in",
		"plugin-mw:in",
		"transport",
		"plugin-mw:out",
		"endpoint-mw:out",
		"global-mw:out",
		"global-plugin:after",
		"endpoint-plugin:after",
	}, trace)
}

func TestPipeline_OnErrorHooks(t *testing.T) {
	var trace []string
	api := mustAPI(t, func(ctx context.Context, req Request) Result {
		return Result{Error: errTransport}
	}, Endpoints{"getUser": getUserEndpoint()},
		WithPlugin(newTracePlugin("a", &trace), newTracePlugin("b", &trace)))

	snap := mustUse(t, api, "GetUserQuery", 1)
	require.True(t, snap.IsError)

	assert.Equal(t, []string{"a:before", "b:before", "a:after", "b:after", "a:error", "b:error"}, trace)
}

func TestPipeline_MiddlewareShortCircuit(t *testing.T) {
	errLoggedOut := errors.New("logged out")
	backend := userBackend()
	api := mustAPI(t, backend.Base, Endpoints{"getUser": getUserEndpoint()},
		WithMiddleware(func(rc *RequestCtx, next Next) (Result, error) {
			return Result{Error: errLoggedOut}, nil
		}))

	q, err := api.Query("GetUserQuery")
	require.NoError(t, err)
	snap, err := q.Use(context.Background(), 1)
	require.NoError(t, err)

	assert.Zero(t, backend.Calls())
	assert.False(t, snap.IsSuccess, "the entry is untouched by a short-circuited run")
	assert.False(t, snap.IsLoading)
}

func TestPipeline_MiddlewareCanRetry(t *testing.T) {
	attempts := 0
	backend := newRecorder(func(Request) Result {
		attempts++
		if attempts == 1 {
			return Result{Error: errTransport}
		}
		return Result{Data: user{ID: 1}}
	})

	retryOnce := func(rc *RequestCtx, next Next) (Result, error) {
		res, err := next()
		if err != nil || res.OK() {
			return res, err
		}
		rc.Set(func(s EntryState) EntryState {
			s.IsError = false
			return s
		})
		return next()
	}

	api := mustAPI(t, backend.Base, Endpoints{"getUser": getUserEndpoint()}, WithMiddleware(retryOnce))

	q, err := api.Query("GetUserQuery")
	require.NoError(t, err)
	_, err = q.Use(context.Background(), 1)

	var mwErr *MiddlewareError
	require.ErrorAs(t, err, &mwErr)
	assert.ErrorIs(t, err, ErrNextCalledTwice)
	assert.Equal(t, 0, mwErr.Index)
	assert.Equal(t, "getUser", mwErr.Endpoint)
	assert.Equal(t, 1, backend.Calls(), "the second next never reaches the transport")
}

func TestPipeline_DoubleNextReportedWhenSwallowed(t *testing.T) {
	backend := userBackend()
	swallow := func(rc *RequestCtx, next Next) (Result, error) {
		res, _ := next()
		_, _ = next()
		return res, nil
	}
	inner := func(rc *RequestCtx, next Next) (Result, error) {
		return next()
	}

	api := mustAPI(t, backend.Base, Endpoints{"getUser": getUserEndpoint()}, WithMiddleware(inner, swallow))

	q, err := api.Query("GetUserQuery")
	require.NoError(t, err)
	_, err = q.Use(context.Background(), 1)

	var mwErr *MiddlewareError
	require.ErrorAs(t, err, &mwErr)
	assert.Equal(t, 1, mwErr.Index)
	assert.Equal(t, 1, backend.Calls())
}

func TestPipeline_PluginErrors(t *testing.T) {
	errHook := errors.New("hook failed")

	tests := []struct {
		name      string
		configure func(p *tracePlugin)
		hook      Hook
		calls     int
	}{
		{"before", func(p *tracePlugin) { p.beforeErr = errHook }, HookBeforeQuery, 0},
		{"after", func(p *tracePlugin) { p.afterErr = errHook }, HookAfterQuery, 1},
		{"onError", func(p *tracePlugin) { p.onErrErr = errHook }, HookOnError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var trace []string
			p := newTracePlugin("faulty", &trace)
			tt.configure(p)

			backend := newRecorder(func(Request) Result { return Result{Error: errTransport} })
			api := mustAPI(t, backend.Base, Endpoints{"getUser": getUserEndpoint()}, WithPlugin(p))

			q, err := api.Query("GetUserQuery")
			require.NoError(t, err)
			_, err = q.Use(context.Background(), 1)

			var pErr *PluginError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, "faulty", pErr.Plugin)
			assert.Equal(t, tt.hook, pErr.Hook)
			assert.Equal(t, "getUser", pErr.Endpoint)
			assert.ErrorIs(t, err, errHook)
			assert.Equal(t, tt.calls, backend.Calls())
		})
	}
}

func TestPipeline_MetaSharedAcrossHooks(t *testing.T) {
	counter := NewMeta[int]("counter")
	var seen int

	mw := func(rc *RequestCtx, next Next) (Result, error) {
		counter.Set(rc, counter.GetOrDefault(rc, 0)+1)
		return next()
	}
	p := &metaPlugin{BasePlugin: NewBasePlugin("meta"), meta: counter, seen: &seen}

	api := mustAPI(t, userBackend().Base, Endpoints{"getUser": getUserEndpoint()},
		WithMiddleware(mw), WithPlugin(p))
	mustUse(t, api, "GetUserQuery", 1)

	assert.Equal(t, 11, seen)
}

type metaPlugin struct {
	BasePlugin
	meta Meta[int]
	seen *int
}

func (p *metaPlugin) BeforeQuery(rc *RequestCtx) error {
	p.meta.Set(rc, 10)
	return nil
}

func (p *metaPlugin) AfterQuery(res Result, rc *RequestCtx) error {
	v, ok := p.meta.Get(rc)
	if !ok {
		return errors.New("meta missing")
	}
	*p.seen = v
	return nil
}

func TestPipeline_RequestCtx(t *testing.T) {
	type ctxKey struct{}
	var got *RequestCtx

	api := mustAPI(t, userBackend().Base, Endpoints{"getUser": getUserEndpoint()},
		WithMiddleware(func(rc *RequestCtx, next Next) (Result, error) {
			got = rc
			return next()
		}))

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	q, err := api.Query("GetUserQuery")
	require.NoError(t, err)
	_, err = q.Use(ctx, 3)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "getUser", got.Endpoint)
	assert.Equal(t, KindQuery, got.Kind)
	assert.Equal(t, "getUser(3)", got.Key)
	assert.Equal(t, 3, got.Arg)
	assert.Equal(t, "v", got.Context().Value(ctxKey{}))
	assert.Same(t, api, got.API())
	assert.Equal(t, KindQuery, got.Definition().Kind())
	assert.True(t, got.Get().IsSuccess)
	assert.False(t, got.StartedAt().IsZero())
}
