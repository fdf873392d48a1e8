package query

import "context"

// TypedSnapshot is a Snapshot with Data converted to R.
type TypedSnapshot[R any] struct {
	Data       R
	Error      error
	IsLoading  bool
	IsFetching bool
	IsError    bool
	IsSuccess  bool

	raw Snapshot
}

func typedSnapshot[R any](s Snapshot) (TypedSnapshot[R], error) {
	data, err := decodeAs[R](s.Data)
	if err != nil {
		return TypedSnapshot[R]{}, err
	}
	return TypedSnapshot[R]{
		Data:       data,
		Error:      s.Error,
		IsLoading:  s.IsLoading,
		IsFetching: s.IsFetching,
		IsError:    s.IsError,
		IsSuccess:  s.IsSuccess,
		raw:        s,
	}, nil
}

// ReFetch runs the query again for the same argument, bypassing the cache.
func (s TypedSnapshot[R]) ReFetch(ctx context.Context) (TypedResult[R], error) {
	res, err := s.raw.ReFetch(ctx)
	if err != nil {
		return TypedResult[R]{Error: res.Error}, err
	}
	return typedResult[R](res)
}

// Untyped returns the underlying Snapshot.
func (s TypedSnapshot[R]) Untyped() Snapshot {
	return s.raw
}

// TypedResult is a Result with Data converted to R.
type TypedResult[R any] struct {
	Data  R
	Error error
}

// OK reports whether the result carries data.
func (r TypedResult[R]) OK() bool {
	return r.Error == nil
}

func typedResult[R any](res Result) (TypedResult[R], error) {
	if res.Error != nil {
		return TypedResult[R]{Error: res.Error}, nil
	}
	data, err := decodeAs[R](res.Data)
	if err != nil {
		return TypedResult[R]{}, err
	}
	return TypedResult[R]{Data: data}, nil
}

// QueryController is a typed activation of a query accessor.
type QueryController[A, R any] struct {
	accessor *QueryAccessor
}

// UseQuery resolves a query accessor by name and binds it to A and R.
func UseQuery[A, R any](api *API, accessor string) (*QueryController[A, R], error) {
	q, err := api.Query(accessor)
	if err != nil {
		return nil, err
	}
	return &QueryController[A, R]{accessor: q}, nil
}

// Use activates the query for arg. See QueryAccessor.Use.
func (c *QueryController[A, R]) Use(ctx context.Context, arg A, opts ...UseOption) (TypedSnapshot[R], error) {
	s, err := c.accessor.Use(ctx, arg, opts...)
	if err != nil {
		return TypedSnapshot[R]{raw: s, Error: s.Error}, err
	}
	return typedSnapshot[R](s)
}

// Peek returns the snapshot for arg without running anything.
func (c *QueryController[A, R]) Peek(arg A) (TypedSnapshot[R], error) {
	s, err := c.accessor.Peek(arg)
	if err != nil {
		return TypedSnapshot[R]{}, err
	}
	return typedSnapshot[R](s)
}

// Subscribe calls fn after every state change of the entry for arg.
// Snapshots whose data cannot be converted to R are dropped.
func (c *QueryController[A, R]) Subscribe(arg A, fn func(TypedSnapshot[R])) (func(), error) {
	return c.accessor.Subscribe(arg, func(s Snapshot) {
		if ts, err := typedSnapshot[R](s); err == nil {
			fn(ts)
		}
	})
}

// Accessor returns the untyped accessor.
func (c *QueryController[A, R]) Accessor() *QueryAccessor {
	return c.accessor
}

// MutationController is a typed mutation accessor.
type MutationController[A, R any] struct {
	accessor *MutationAccessor
}

// UseMutation resolves a mutation accessor by name and binds it to A and R.
func UseMutation[A, R any](api *API, accessor string) (*MutationController[A, R], error) {
	m, err := api.Mutation(accessor)
	if err != nil {
		return nil, err
	}
	return &MutationController[A, R]{accessor: m}, nil
}

// Invoke runs the mutation with arg.
func (c *MutationController[A, R]) Invoke(ctx context.Context, arg A) (TypedResult[R], error) {
	res, err := c.accessor.Invoke(ctx, arg)
	if err != nil {
		return TypedResult[R]{Error: res.Error}, err
	}
	return typedResult[R](res)
}

// State returns the typed snapshot of the shared mutation entry.
func (c *MutationController[A, R]) State() (TypedSnapshot[R], error) {
	return typedSnapshot[R](c.accessor.State())
}

// Subscribe calls fn after every state change of the mutation entry.
func (c *MutationController[A, R]) Subscribe(fn func(TypedSnapshot[R])) (func(), error) {
	return c.accessor.Subscribe(func(s Snapshot) {
		if ts, err := typedSnapshot[R](s); err == nil {
			fn(ts)
		}
	})
}

// UpdateQueryData is the typed form of API.UpdateQueryData. Data that cannot
// be converted to R is passed to fn as the zero R.
func UpdateQueryData[A, R any](api *API, endpoint string, arg A, fn func(current R) R) bool {
	return api.UpdateQueryData(endpoint, arg, func(current any) any {
		r, _ := decodeAs[R](current)
		return fn(r)
	})
}
