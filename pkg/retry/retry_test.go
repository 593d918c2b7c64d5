package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("serialization conflict")

func fastRetrier(attempts int) *Retrier {
	return New(
		WithMaxAttempts(attempts),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
		WithJitter(0),
	)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errTransient)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("unknown competitor")
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(permanent)
	})

	assert.Equal(t, 1, calls)
	// Permanent wrapping is stripped so callers match the original error.
	assert.Equal(t, permanent, err)
}

func TestDo_ExhaustionReturnsUnwrappedError(t *testing.T) {
	calls := 0
	err := fastRetrier(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errTransient)
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, errTransient, err)
}

func TestDo_UnclassifiedErrorIsNotRetried(t *testing.T) {
	plain := errors.New("boom")
	calls := 0
	err := fastRetrier(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return plain
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, plain, err)
}

func TestDo_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := fastRetrier(10).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errTransient)
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestErrorWrappersPreserveErrorsIs(t *testing.T) {
	assert.True(t, errors.Is(Retryable(errTransient), errTransient))
	assert.True(t, errors.Is(Permanent(errTransient), errTransient))
	assert.True(t, IsRetryable(Retryable(errTransient)))
	assert.False(t, IsRetryable(Permanent(errTransient)))
	assert.True(t, IsPermanent(Permanent(errTransient)))
	assert.Nil(t, Retryable(nil))
	assert.Nil(t, Permanent(nil))
}

func TestWithRetryIf_OverridesClassification(t *testing.T) {
	calls := 0
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }),
	)

	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient // not wrapped, still retried
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, errTransient, err)
}

func TestOnRetry_ReportsAttempts(t *testing.T) {
	var attempts []int
	r := New(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
		}),
	)

	_ = r.Do(context.Background(), func(ctx context.Context) error {
		return Retryable(errTransient)
	})

	// No callback on the final attempt; there is nothing left to retry.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	got, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, Retryable(errTransient)
		}
		return 42, nil
	}, WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestCalculateDelay_BackoffAndCap(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(40*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(4), "capped at max delay")
}
