package query

import "sync"

// SetFunc applies an update function to a store's current state.
type SetFunc[S any] func(update func(S) S)

// Store holds a single state value and notifies subscribers synchronously
// on every Set.
type Store[S any] struct {
	mu        sync.RWMutex
	state     S
	listeners []*listener[S]
	nextID    uint64
	set       SetFunc[S]
}

type listener[S any] struct {
	id uint64
	fn func(S)
}

// NewStore creates a store with the given initial state. Store middleware
// wraps Set; the first middleware sees every call first.
func NewStore[S any](initial S, mws ...StoreMiddleware[S]) *Store[S] {
	s := &Store[S]{state: initial}
	s.set = ComposeStoreMiddleware(s.rawSet, s.Get, mws...)
	return s
}

// Get returns the current state.
func (s *Store[S]) Get() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set applies update through the middleware chain.
func (s *Store[S]) Set(update func(S) S) {
	s.set(update)
}

// Subscribe registers fn to be called with the new state after every Set.
// The returned function removes the subscription.
func (s *Store[S]) Subscribe(fn func(S)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, &listener[S]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store[S]) rawSet(update func(S) S) {
	s.mu.Lock()
	s.state = update(s.state)
	state := s.state
	listeners := make([]*listener[S], len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	// Listeners run without the lock so they can read or write the store.
	for _, l := range listeners {
		l.fn(state)
	}
}
