// Package retry provides a reusable bounded-retry policy for collaborator
// calls that can rate-limit or transiently fail.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy defines how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Retryable reports whether an error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// Do runs op until it succeeds, the policy is exhausted, or the context is
// canceled. The last error is returned on exhaustion; a non-retryable error
// is returned immediately.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}
