package query

import (
	"context"
	"time"
)

// EntryState is the state of one cache entry. After settling, at most one of
// IsSuccess and IsError is true; both are false while a call is in flight.
type EntryState struct {
	Data       any
	Error      error
	IsLoading  bool
	IsFetching bool
	IsSuccess  bool
	IsError    bool

	// LastArg is the serialized argument of the last run.
	LastArg string
	// CacheExpiry is the instant after which Data is stale.
	CacheExpiry time.Time
	// ProvidedTags are the tags of the last successful result.
	ProvidedTags []Tag
	// FulfilledAt is when the last fresh response settled.
	FulfilledAt time.Time
	// RequestID is the RequestCtx.ID of the latest run.
	RequestID string
}

// entry is a cache slot. Query entries are bound to one argument; the single
// entry of a mutation endpoint takes a new argument on every call.
type entry struct {
	name  string
	key   string
	arg   any
	def   *Endpoint
	store *Store[EntryState]
}

type fetchOutcome struct {
	data   any
	tags   []Tag
	err    error
	thrown bool
}

// execute runs one fetch cycle for the entry. The Result carries transport
// level failures; the error return is reserved for faults raised by the
// OnError callback.
func (e *entry) execute(ctx context.Context, rc *RequestCtx, base BaseQuery, argKey string, timeout time.Duration, force bool, now func() time.Time) (Result, error) {
	set := e.store.Set
	prev := e.store.Get()
	set(func(s EntryState) EntryState {
		s.IsLoading = true
		s.IsSuccess = false
		s.IsError = false
		s.RequestID = rc.ID
		return s
	})

	if !force && prev.IsSuccess && prev.LastArg == argKey && !prev.CacheExpiry.Before(now()) {
		data := prev.Data
		set(func(s EntryState) EntryState {
			s.Data = data
			s.Error = nil
			s.IsSuccess = true
			s.IsError = false
			s.IsLoading = false
			s.IsFetching = false
			s.LastArg = argKey
			return s
		})
		return Result{Data: data}, nil
	}

	set(func(s EntryState) EntryState {
		s.IsFetching = true
		return s
	})

	out := e.fetch(ctx, rc.Arg, base, prev)

	var fault error
	if out.err != nil && !out.thrown {
		if e.def.transformError != nil {
			if te := e.def.transformError(out.err, prev.Error); te != nil {
				out.err = te
			}
		}
		if e.def.onError != nil {
			if err := e.def.onError(ctx, out.err); err != nil {
				fault = &CallbackError{Endpoint: e.name, Err: err}
			}
		}
	}

	if out.err != nil {
		err := out.err
		set(func(s EntryState) EntryState {
			s.Data = nil
			s.Error = err
			s.IsSuccess = false
			s.IsError = true
			s.IsLoading = false
			s.IsFetching = false
			s.LastArg = argKey
			return s
		})
		return Result{Error: err}, fault
	}

	settled := now()
	set(func(s EntryState) EntryState {
		s.Data = out.data
		s.Error = nil
		s.IsSuccess = true
		s.IsError = false
		s.IsLoading = false
		s.IsFetching = false
		s.CacheExpiry = settled.Add(timeout)
		s.FulfilledAt = settled
		s.LastArg = argKey
		s.ProvidedTags = out.tags
		return s
	})
	return Result{Data: out.data}, nil
}

// fetch calls the transport and the success hooks. A panic or a returned
// hook error is reported with thrown set, which skips TransformError and
// OnError.
func (e *entry) fetch(ctx context.Context, arg any, base BaseQuery, prev EntryState) (out fetchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = fetchOutcome{err: newPanicError(r), thrown: true}
		}
	}()

	var res Result
	if e.def.queryFn != nil {
		res = e.def.queryFn(ctx, arg, base)
	} else {
		req, err := e.def.request(arg)
		if err != nil {
			return fetchOutcome{err: err, thrown: true}
		}
		res = base(ctx, req)
	}

	if res.Error != nil {
		return fetchOutcome{err: res.Error}
	}

	data, err := e.def.transformResponse(res.Data, prev.Data)
	if err != nil {
		return fetchOutcome{err: err, thrown: true}
	}
	if e.def.onSuccess != nil {
		if err := e.def.onSuccess(ctx, data); err != nil {
			return fetchOutcome{err: err, thrown: true}
		}
	}
	return fetchOutcome{data: data, tags: e.def.tagsFor(data)}
}
