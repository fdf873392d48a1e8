package query

// StoreMiddleware intercepts a store's Set. It receives the raw set and get
// of the store and returns a wrapper around the next set in the chain. A
// middleware may run logic before and after calling next, or not call it at
// all.
type StoreMiddleware[S any] func(set SetFunc[S], get func() S) func(next SetFunc[S]) SetFunc[S]

// ComposeStoreMiddleware builds mws[0](mws[1](...mws[n-1](raw))). The last
// middleware is innermost, closest to raw.
func ComposeStoreMiddleware[S any](raw SetFunc[S], get func() S, mws ...StoreMiddleware[S]) SetFunc[S] {
	set := raw
	for i := len(mws) - 1; i >= 0; i-- {
		set = mws[i](raw, get)(set)
	}
	return set
}
