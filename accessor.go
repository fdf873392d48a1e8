package query

import (
	"context"
	"sync"
)

// Snapshot is the reactive view of a cache entry.
type Snapshot struct {
	Data       any
	Error      error
	IsLoading  bool
	IsFetching bool
	IsError    bool
	IsSuccess  bool

	refetch func(ctx context.Context) (Result, error)
}

func newSnapshot(s EntryState, refetch func(context.Context) (Result, error)) Snapshot {
	return Snapshot{
		Data:       s.Data,
		Error:      s.Error,
		IsLoading:  s.IsLoading,
		IsFetching: s.IsFetching,
		IsError:    s.IsError,
		IsSuccess:  s.IsSuccess,
		refetch:    refetch,
	}
}

// ReFetch runs the pipeline again for the same argument, bypassing the
// cache.
func (s Snapshot) ReFetch(ctx context.Context) (Result, error) {
	if s.refetch == nil {
		return Result{}, ErrNotActivated
	}
	return s.refetch(ctx)
}

type useConfig struct {
	skip bool
}

// UseOption modifies a QueryAccessor.Use call.
type UseOption func(*useConfig)

// Skip suppresses the fetch; the snapshot of the entry is still returned.
func Skip(skip bool) UseOption {
	return func(c *useConfig) {
		c.skip = skip
	}
}

// QueryAccessor is one activation of a query endpoint. It remembers the key
// it last activated, so repeated Use calls with the same argument do not
// run the pipeline again.
type QueryAccessor struct {
	api  *API
	name string

	mu      sync.Mutex
	active  bool
	lastKey string
}

// Endpoint returns the endpoint name.
func (q *QueryAccessor) Endpoint() string {
	return q.name
}

// Use activates the accessor for arg. The pipeline runs on the first
// activation and whenever the argument's key changes, unless skipped.
// Transport failures are reported in the snapshot; the error return is only
// set for faults raised by plugins, middleware or callbacks.
func (q *QueryAccessor) Use(ctx context.Context, arg any, opts ...UseOption) (Snapshot, error) {
	cfg := useConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	def, err := q.api.definition(q.name)
	if err != nil {
		return Snapshot{}, err
	}
	e := q.api.entryFor(q.name, def, arg)

	if cfg.skip {
		return q.api.snapshot(e), nil
	}

	q.mu.Lock()
	changed := !q.active || q.lastKey != e.key
	q.active = true
	q.lastKey = e.key
	q.mu.Unlock()

	if changed {
		if _, err := q.api.run(ctx, e, e.arg, false, q.api.timeoutFor(e.def)); err != nil {
			return q.api.snapshot(e), err
		}
	}
	return q.api.snapshot(e), nil
}

// Peek returns the snapshot for arg without running anything.
func (q *QueryAccessor) Peek(arg any) (Snapshot, error) {
	return q.api.Select(q.name, arg)
}

// Subscribe calls fn with a fresh snapshot after every state change of the
// entry for arg.
func (q *QueryAccessor) Subscribe(arg any, fn func(Snapshot)) (func(), error) {
	def, err := q.api.definition(q.name)
	if err != nil {
		return nil, err
	}
	e := q.api.entryFor(q.name, def, arg)
	return e.store.Subscribe(func(EntryState) {
		fn(q.api.snapshot(e))
	}), nil
}

// MutationAccessor invokes a mutation endpoint. All invocations share one
// cache entry; the last call to settle defines State.
type MutationAccessor struct {
	api  *API
	name string
}

// Endpoint returns the endpoint name.
func (m *MutationAccessor) Endpoint() string {
	return m.name
}

// Invoke runs the mutation. It never serves from cache. When the endpoint
// declares InvalidatesTags, the tags of a successful result are invalidated
// before Invoke returns.
func (m *MutationAccessor) Invoke(ctx context.Context, arg any) (Result, error) {
	def, err := m.api.definition(m.name)
	if err != nil {
		return Result{}, err
	}
	e := m.api.entryFor(m.name, def, arg)

	res, err := m.api.run(ctx, e, arg, true, 0)
	if err != nil {
		return res, err
	}

	if res.OK() && def.invalidatesTags != nil {
		if err := m.api.InvalidateTags(ctx, def.invalidatesTags(res.Data)...); err != nil {
			return res, err
		}
	}
	return res, nil
}

// State returns the snapshot of the shared mutation entry.
func (m *MutationAccessor) State() Snapshot {
	def, err := m.api.definition(m.name)
	if err != nil {
		return Snapshot{}
	}
	return m.api.snapshot(m.api.entryFor(m.name, def, nil))
}

// Subscribe calls fn after every state change of the mutation entry.
func (m *MutationAccessor) Subscribe(fn func(Snapshot)) (func(), error) {
	def, err := m.api.definition(m.name)
	if err != nil {
		return nil, err
	}
	e := m.api.entryFor(m.name, def, nil)
	return e.store.Subscribe(func(EntryState) {
		fn(m.api.snapshot(e))
	}), nil
}
