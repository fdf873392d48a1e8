package query

// Meta is a type-safe key for data attached to a RequestCtx, letting a
// plugin pass values from BeforeQuery to AfterQuery.
type Meta[T any] struct {
	key string
}

// NewMeta creates a new key with the given name
func NewMeta[T any](key string) Meta[T] {
	return Meta[T]{key: key}
}

// Get retrieves the value from a request context
func (m Meta[T]) Get(rc *RequestCtx) (T, bool) {
	val, ok := rc.load(m)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// GetOrDefault retrieves the value or returns a default
func (m Meta[T]) GetOrDefault(rc *RequestCtx, defaultVal T) T {
	if val, ok := m.Get(rc); ok {
		return val
	}
	return defaultVal
}

// Set stores the value on a request context
func (m Meta[T]) Set(rc *RequestCtx, val T) {
	rc.store(m, val)
}
