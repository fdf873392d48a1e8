package query

import (
	"context"
	"sync"
	"time"
)

// Next continues a middleware chain.
type Next func() (Result, error)

// Middleware intercepts a pipeline run. It must call next at most once;
// not calling it short-circuits the run with the returned Result.
type Middleware func(rc *RequestCtx, next Next) (Result, error)

// run executes plugins, middleware and the fetch executor for one entry.
func (a *API) run(ctx context.Context, e *entry, arg any, force bool, timeout time.Duration) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rc := newRequestCtx(ctx, a, e, arg, a.now())
	plugins := a.pluginsFor(e.def)
	mws := a.middlewareFor(e.def, plugins)
	argKey := a.keys.Serialize(arg)

	for _, p := range plugins {
		if err := p.BeforeQuery(rc); err != nil {
			return Result{}, &PluginError{Plugin: p.Name(), Hook: HookBeforeQuery, Endpoint: e.name, Err: err}
		}
	}

	res, err := runChain(rc, mws, func() (Result, error) {
		return e.execute(ctx, rc, a.base, argKey, timeout, force, a.now)
	})
	if err != nil {
		return res, err
	}

	a.logger.Debug("query settled",
		"endpoint", e.name,
		"key", e.key,
		"request_id", rc.ID,
		"ok", res.OK(),
	)
	if res.OK() && e.def.kind == KindQuery {
		a.checkTags(e.name, e.store.Get().ProvidedTags)
	}

	for _, p := range plugins {
		if err := p.AfterQuery(res, rc); err != nil {
			return res, &PluginError{Plugin: p.Name(), Hook: HookAfterQuery, Endpoint: e.name, Err: err}
		}
	}

	if res.Error != nil {
		for _, p := range plugins {
			if err := p.OnError(res.Error, rc); err != nil {
				return res, &PluginError{Plugin: p.Name(), Hook: HookOnError, Endpoint: e.name, Err: err}
			}
		}
	}

	return res, nil
}

func (a *API) pluginsFor(def *Endpoint) []Plugin {
	a.mu.RLock()
	defer a.mu.RUnlock()
	plugins := make([]Plugin, 0, len(a.plugins)+len(def.plugins))
	plugins = append(plugins, a.plugins...)
	return append(plugins, def.plugins...)
}

func (a *API) middlewareFor(def *Endpoint, plugins []Plugin) []Middleware {
	a.mu.RLock()
	mws := make([]Middleware, 0, len(a.middleware)+len(def.middleware))
	mws = append(mws, a.middleware...)
	a.mu.RUnlock()

	mws = append(mws, def.middleware...)
	for _, p := range plugins {
		if mp, ok := p.(MiddlewareProvider); ok {
			mws = append(mws, mp.Middleware()...)
		}
	}
	return mws
}

// runChain runs mws in order; the last one's next calls terminal. Every next
// may be called once. A second call fails immediately and the violation is
// reported by runChain even if the middleware discards the error.
func runChain(rc *RequestCtx, mws []Middleware, terminal Next) (Result, error) {
	var (
		mu        sync.Mutex
		violation error
	)

	var dispatch func(i int) Next
	dispatch = func(i int) Next {
		called := false
		return func() (Result, error) {
			mu.Lock()
			if called {
				if violation == nil {
					violation = &MiddlewareError{Endpoint: rc.Endpoint, Index: i - 1, Err: ErrNextCalledTwice}
				}
				err := violation
				mu.Unlock()
				return Result{}, err
			}
			called = true
			mu.Unlock()

			if i == len(mws) {
				return terminal()
			}
			return mws[i](rc, dispatch(i+1))
		}
	}

	res, err := dispatch(0)()

	mu.Lock()
	defer mu.Unlock()
	if violation != nil {
		return res, violation
	}
	return res, err
}
