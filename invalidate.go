package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// InvalidateTags expires every query entry whose provided tags match one of
// tags and refetches it with its own argument. Refetches run concurrently;
// InvalidateTags returns once all of them settled. Faults are joined.
func (a *API) InvalidateTags(ctx context.Context, tags ...Tag) error {
	if len(tags) == 0 {
		return nil
	}

	var targets []*entry
	a.entries.Range(func(_ string, e *entry) bool {
		if e.def.kind == KindQuery && MatchesAny(tags, e.store.Get().ProvidedTags) {
			targets = append(targets, e)
		}
		return true
	})

	a.logger.Debug("invalidating tags", "tags", tagStrings(tags), "entries", len(targets))
	return a.refetchAll(ctx, targets)
}

// ResetAPIState expires and refetches every query entry.
func (a *API) ResetAPIState(ctx context.Context) error {
	var targets []*entry
	a.entries.Range(func(_ string, e *entry) bool {
		if e.def.kind == KindQuery {
			targets = append(targets, e)
		}
		return true
	})

	a.logger.Debug("resetting api state", "entries", len(targets))
	return a.refetchAll(ctx, targets)
}

// RefetchQuery expires and refetches the entry of endpoint for arg.
func (a *API) RefetchQuery(ctx context.Context, endpoint string, arg any) (Result, error) {
	e, err := a.lookup(endpoint, arg)
	if err != nil {
		return Result{}, err
	}
	expire(e)
	return a.run(ctx, e, e.arg, true, a.timeoutFor(e.def))
}

// UpdateQueryData replaces the data of the entry of endpoint for arg with
// fn(current). Flags, errors and expiry are left alone and nothing is
// fetched. It reports whether the entry exists.
func (a *API) UpdateQueryData(endpoint string, arg any, fn func(current any) any) bool {
	e, err := a.lookup(endpoint, arg)
	if err != nil {
		return false
	}
	e.store.Set(func(s EntryState) EntryState {
		s.Data = fn(s.Data)
		return s
	})
	return true
}

func (a *API) lookup(endpoint string, arg any) (*entry, error) {
	def, err := a.definition(endpoint)
	if err != nil {
		return nil, err
	}
	key := endpoint
	if def.kind == KindQuery {
		key = a.keys.Key(endpoint, arg)
	}
	e, ok := a.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}
	return e, nil
}

func (a *API) refetchAll(ctx context.Context, targets []*entry) error {
	for _, e := range targets {
		expire(e)
	}

	errs := make([]error, len(targets))
	panics := make([]any, len(targets))
	var wg sync.WaitGroup
	for i, e := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { panics[i] = recover() }()
			_, errs[i] = a.run(ctx, e, e.arg, true, a.timeoutFor(e.def))
		}()
	}
	wg.Wait()

	// A hook panic surfaces on the caller's goroutine once every refetch settled.
	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	return errors.Join(errs...)
}

func expire(e *entry) {
	e.store.Set(func(s EntryState) EntryState {
		s.CacheExpiry = time.Time{}
		return s
	})
}

func tagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}
