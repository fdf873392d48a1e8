package httpquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a response with a status code of 400 or above.
type HTTPError struct {
	Status int
	Data   any
	Header http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.Status, renderData(e.Data))
}

// Retryable reports whether the error should be considered transient.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Status == http.StatusTooManyRequests ||
		e.Status == http.StatusRequestTimeout ||
		(e.Status >= 500 && e.Status <= 599)
}

// FetchError reports a request that produced no response.
type FetchError struct {
	Method string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports false for cancelled or expired contexts.
func (e *FetchError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
}

func renderData(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case json.RawMessage:
		return string(d)
	case string:
		return d
	default:
		return fmt.Sprint(d)
	}
}
