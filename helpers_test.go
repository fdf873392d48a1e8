package query

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder is a transport that records the requests it receives and answers
// through a configurable handler.
type recorder struct {
	mu      sync.Mutex
	reqs    []Request
	handler func(req Request) Result
}

func newRecorder(handler func(req Request) Result) *recorder {
	return &recorder{handler: handler}
}

func (r *recorder) Base(ctx context.Context, req Request) Result {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	handler := r.handler
	r.mu.Unlock()
	return handler(req)
}

func (r *recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func (r *recorder) CallsTo(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, req := range r.reqs {
		if req.URL == url {
			n++
		}
	}
	return n
}

func (r *recorder) Last() Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[len(r.reqs)-1]
}

func (r *recorder) SetHandler(handler func(req Request) Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// userBackend answers /users/<id> with a user named after the call count.
func userBackend() *recorder {
	var n int
	var mu sync.Mutex
	return newRecorder(func(req Request) Result {
		mu.Lock()
		n++
		count := n
		mu.Unlock()

		var id int
		if _, err := fmt.Sscanf(req.URL, "/users/%d", &id); err == nil {
			return Result{Data: user{ID: id, Name: fmt.Sprintf("user-%d-v%d", id, count)}}
		}
		return Result{Data: []post{{ID: 1, Title: fmt.Sprintf("v%d", count)}}}
	})
}

func getUserEndpoint() Endpoint {
	return Query(QueryDef[int, user]{
		Build: func(id int) Request {
			return URLRequest(fmt.Sprintf("/users/%d", id))
		},
		ProvidesTags: func(u user) []Tag {
			return []Tag{IDTag("users", u.ID)}
		},
	})
}

func getPostsEndpoint() Endpoint {
	return Query(QueryDef[struct{}, []post]{
		Build: func(struct{}) Request {
			return URLRequest("/posts")
		},
		ProvidesTags: StaticTags[[]post](StringTag("posts")),
	})
}

func mustAPI(t *testing.T, base BaseQuery, endpoints Endpoints, opts ...Option) *API {
	t.Helper()
	api, err := CreateAPI(base, endpoints, opts...)
	require.NoError(t, err)
	return api
}

func mustUse(t *testing.T, api *API, accessor string, arg any, opts ...UseOption) Snapshot {
	t.Helper()
	q, err := api.Query(accessor)
	require.NoError(t, err)
	snap, err := q.Use(context.Background(), arg, opts...)
	require.NoError(t, err)
	return snap
}

func entryState(t *testing.T, api *API, endpoint string, arg any) EntryState {
	t.Helper()
	def, err := api.definition(endpoint)
	require.NoError(t, err)
	return api.entryFor(endpoint, def, arg).store.Get()
}
