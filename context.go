package query

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestCtx is shared by the plugins and middleware of one pipeline run.
type RequestCtx struct {
	// ID identifies the run; it is also recorded as EntryState.RequestID.
	ID       string
	Endpoint string
	Kind     Kind
	Key      string
	Arg      any

	ctx       context.Context
	api       *API
	def       *Endpoint
	entry     *entry
	startedAt time.Time

	mu   sync.Mutex
	data map[any]any
}

func newRequestCtx(ctx context.Context, api *API, e *entry, arg any, now time.Time) *RequestCtx {
	return &RequestCtx{
		ID:        uuid.NewString(),
		Endpoint:  e.name,
		Kind:      e.def.kind,
		Key:       e.key,
		Arg:       arg,
		ctx:       ctx,
		api:       api,
		def:       e.def,
		entry:     e,
		startedAt: now,
		data:      make(map[any]any),
	}
}

// Context returns the context the run was started with.
func (rc *RequestCtx) Context() context.Context {
	return rc.ctx
}

// API returns the API running the request.
func (rc *RequestCtx) API() *API {
	return rc.api
}

// Definition returns the endpoint being run.
func (rc *RequestCtx) Definition() *Endpoint {
	return rc.def
}

// StartedAt returns when the run began.
func (rc *RequestCtx) StartedAt() time.Time {
	return rc.startedAt
}

// Get returns the current state of the cache entry.
func (rc *RequestCtx) Get() EntryState {
	return rc.entry.store.Get()
}

// Set updates the cache entry.
func (rc *RequestCtx) Set(update func(EntryState) EntryState) {
	rc.entry.store.Set(update)
}

func (rc *RequestCtx) load(key any) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.data[key]
	return v, ok
}

func (rc *RequestCtx) store(key, val any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.data[key] = val
}
