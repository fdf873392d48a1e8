package query

import (
	"sort"
	"sync"
)

// TypeSafeCache is an append-only, concurrency-safe map from cache key to T.
type TypeSafeCache[T any] struct {
	data sync.Map
}

func NewTypeSafeCache[T any]() *TypeSafeCache[T] {
	return &TypeSafeCache[T]{}
}

func (c *TypeSafeCache[T]) Load(key string) (T, bool) {
	value, ok := c.data.Load(key)
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// LoadOrStore returns the existing value for key, or stores and returns the
// value produced by create. create may run and be discarded when two callers
// race on the same key.
func (c *TypeSafeCache[T]) LoadOrStore(key string, create func() T) (T, bool) {
	if value, ok := c.data.Load(key); ok {
		return value.(T), true
	}
	value, loaded := c.data.LoadOrStore(key, create())
	return value.(T), loaded
}

func (c *TypeSafeCache[T]) Range(fn func(key string, value T) bool) {
	c.data.Range(func(key, value any) bool {
		return fn(key.(string), value.(T))
	})
}

// Keys returns all keys in sorted order.
func (c *TypeSafeCache[T]) Keys() []string {
	var keys []string
	c.data.Range(func(key, value any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}
