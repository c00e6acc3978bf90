// Package retry implements the single retry policy shared by the retrieval
// and generation clients: a bounded number of attempts with exponential
// backoff and a pluggable retryable-error predicate.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; each further
	// retry doubles it, capped at MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay. Zero means no cap.
	MaxDelay time.Duration
	// Jitter adds up to 25% randomization in either direction when true.
	Jitter bool
	// Retryable decides whether an error should trigger another attempt.
	// Nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy returns the policy used by the backend clients:
// 3 attempts starting at one second, doubling each retry.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// None returns a policy that performs a single attempt.
func None() Policy {
	return Policy{MaxAttempts: 1}
}

// Delay returns the backoff delay preceding the given retry
// (attempt 0 is the first retry).
func (p Policy) Delay(attempt int) time.Duration {
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		//nolint:gosec // weak RNG is fine for backoff jitter
		delay += time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	}
	return delay
}

// Do runs fn until it succeeds, the policy is exhausted, or the context is
// cancelled. It returns the last error when all attempts fail.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}
