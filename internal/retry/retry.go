// Package retry runs model calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior for transient failures.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps any single delay.
	MaxDelay time.Duration

	// Multiplier is applied to BaseDelay on each successive retry.
	Multiplier float64

	// Jitter multiplies the delay by a random factor in [0.5, 1.5).
	Jitter bool

	// OnRetry is invoked before each retry.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy makes five attempts with delays between 4s and 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// DelayForAttempt calculates the delay after the given failed attempt (0-indexed).
func (p Policy) DelayForAttempt(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

type retryable interface {
	IsRetryable() bool
}

// IsRetryable checks whether err should be retried. Errors that do not
// say otherwise are retried, except context cancellation.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// Do executes fn under the policy and returns the last error when every
// attempt failed.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		var result T
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) || attempt == attempts-1 {
			break
		}

		delay := policy.DelayForAttempt(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, err
}
