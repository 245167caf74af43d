package gateway

import (
	"context"
	"time"

	"github.com/glassboxhq/glassbox/internal/common"
)

// RetryPolicy is the explicit retry contract the gateway invokes
// around each backend call. Transient failures are retried with
// backoff; structural failures surface immediately.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	IsRetryable func(error) bool
}

// DefaultRetryPolicy: 3 attempts total, 500ms/1s/2s backoff, retries
// only transient backend errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return 500 * time.Millisecond << attempt
		},
		IsRetryable: common.IsTransient,
	}
}

// Do runs fn up to MaxAttempts times. The context is honored between
// attempts; a context cancellation surfaces as ctx.Err().
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.IsRetryable == nil || !p.IsRetryable(lastErr) || attempt == attempts-1 {
			return lastErr
		}
		delay := time.Second
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
