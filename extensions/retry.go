package extensions

import (
	"context"
	"errors"
	"time"

	query "github.com/pumped-fn/pumped-query"
)

// RetryPolicy controls the retry behaviour for transient transport failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     float64
	// RetryIf decides whether a failed result is retried. The default
	// retries errors that report themselves Retryable.
	RetryIf func(res query.Result) bool
}

// DefaultRetryPolicy implements a conservative retry strategy.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   2 * time.Second,
	Jitter:     0.25,
}

type retryable interface {
	Retryable() bool
}

// Retry wraps base so failed calls are repeated according to policy. The
// last result is returned once retries are exhausted or ctx is done.
func Retry(base query.BaseQuery, policy RetryPolicy) query.BaseQuery {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy.MaxDelay
	}
	retryIf := policy.RetryIf
	if retryIf == nil {
		retryIf = isRetryable
	}

	return func(ctx context.Context, req query.Request) query.Result {
		backoff := NewBackoff(policy.BaseDelay, policy.MaxDelay, policy.Jitter)
		for attempt := 0; ; attempt++ {
			res := base(ctx, req)
			if res.Error == nil || attempt >= policy.MaxRetries || !retryIf(res) {
				return res
			}
			if err := sleep(ctx, backoff.ForAttempt(attempt)); err != nil {
				return res
			}
		}
	}
}

func isRetryable(res query.Result) bool {
	if errors.Is(res.Error, context.Canceled) || errors.Is(res.Error, context.DeadlineExceeded) {
		return false
	}
	var r retryable
	if errors.As(res.Error, &r) {
		return r.Retryable()
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
