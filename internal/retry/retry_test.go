package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permanentErr struct{}

func (permanentErr) Error() string     { return "bad request" }
func (permanentErr) IsRetryable() bool { return false }

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retries []int
	p := fastPolicy(5)
	p.OnRetry = func(err error, attempt int, delay time.Duration) { retries = append(retries, attempt) }

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("rate limited")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("unavailable")
	})
	assert.EqualError(t, err, "unavailable")
	assert.Equal(t, 3, calls)
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, permanentErr{}
	})
	assert.ErrorIs(t, err, permanentErr{})
	assert.Equal(t, 1, calls)
}

func TestDo_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayForAttempt_IsCapped(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 4*time.Second, p.DelayForAttempt(0))
	assert.Equal(t, 8*time.Second, p.DelayForAttempt(1))
	assert.Equal(t, 10*time.Second, p.DelayForAttempt(2))
	assert.Equal(t, 10*time.Second, p.DelayForAttempt(6))
}
