package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
)

var (
	// ErrNextCalledTwice is returned when a middleware calls next more than once.
	ErrNextCalledTwice = errors.New("next() called multiple times")
	// ErrUnknownAccessor is returned for accessor names the API does not know.
	ErrUnknownAccessor = errors.New("unknown accessor")
	// ErrKindMismatch is returned when a query accessor is requested for a
	// mutation or the other way round.
	ErrKindMismatch = errors.New("endpoint kind mismatch")
	// ErrEntryNotFound is returned when no cache entry exists for a key.
	ErrEntryNotFound = errors.New("cache entry not found")
	// ErrInvalidEndpoint is returned for malformed endpoint definitions.
	ErrInvalidEndpoint = errors.New("invalid endpoint definition")
	// ErrNotActivated is returned by Snapshot.ReFetch on a zero Snapshot.
	ErrNotActivated = errors.New("snapshot is not bound to a cache entry")
)

// PanicError carries a value recovered from a panic during a fetch.
type PanicError struct {
	Value      any
	StackTrace []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, StackTrace: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during fetch: %v", e.Value)
}

// Unwrap exposes the recovered value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// MiddlewareError reports a middleware protocol violation.
type MiddlewareError struct {
	Endpoint string
	Index    int
	Err      error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware %d of endpoint %s: %v", e.Index, e.Endpoint, e.Err)
}

func (e *MiddlewareError) Unwrap() error {
	return e.Err
}

// Hook names a plugin lifecycle hook.
type Hook string

const (
	HookBeforeQuery Hook = "beforeQuery"
	HookAfterQuery  Hook = "afterQuery"
	HookOnError     Hook = "onError"
)

// PluginError wraps an error returned by a plugin hook.
type PluginError struct {
	Plugin   string
	Hook     Hook
	Endpoint string
	Err      error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s %s on %s: %v", e.Plugin, e.Hook, e.Endpoint, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// CallbackError wraps an error returned by an endpoint OnError callback.
type CallbackError struct {
	Endpoint string
	Err      error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("onError callback of %s: %v", e.Endpoint, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// decodeAs converts v to T by assertion, falling back to a JSON round trip
// for raw JSON and generic decoded values.
func decodeAs[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	var raw []byte
	switch val := v.(type) {
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return zero, fmt.Errorf("converting %T to %T: %w", v, zero, err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return zero, nil
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("converting %T to %T: %w", v, zero, err)
	}
	return out, nil
}
