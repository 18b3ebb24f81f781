package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/retry"
	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rateLimitBackoff mirrors the production schedule: 1s doubling, capped at 60s.
func rateLimitBackoff() timeutil.BackoffParam {
	return timeutil.NewBackoffParam(time.Second, 2.0, 60*time.Second)
}

type mockError struct {
	msg       string
	retryable bool
}

func (m *mockError) Error() string {
	return m.msg
}

func (m *mockError) Severity() failure.Severity {
	if m.retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (m *mockError) IsRetryable() bool {
	return m.retryable
}

// recordingSleeper never blocks; it records every requested delay.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		return "success", nil
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, 3, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.False(t, result.IsFailure())
	assert.Equal(t, "success", result.Value())
	assert.Equal(t, 1, result.Attempts())
	assert.Equal(t, 1, callCount)
	assert.Empty(t, sleeper.delays)
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	sleeper := &recordingSleeper{}
	callCount := 0
	fn := func() (int, failure.ClassifiedError) {
		callCount++
		if callCount < 3 {
			return 0, &mockError{msg: "429", retryable: true}
		}
		return 7, nil
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, 5, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.NoError(t, result.Err())
	assert.Equal(t, 7, result.Value())
	assert.Equal(t, 3, result.Attempts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
	assert.Equal(t, sleeper.delays, result.Delays())
}

func TestRetry_UnlimitedBackoffSequenceCapsAtSixtySeconds(t *testing.T) {
	sleeper := &recordingSleeper{}
	const failures = 9
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		if callCount <= failures {
			return "", &mockError{msg: "too many requests", retryable: true}
		}
		return "payload", nil
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 1, 0, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.NoError(t, result.Err())
	assert.Equal(t, "payload", result.Value())
	assert.Equal(t, failures+1, result.Attempts())

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	assert.Equal(t, want, sleeper.delays)
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	sleeper := &recordingSleeper{}
	callCount := 0
	wantErr := &mockError{msg: "not found", retryable: false}
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		return "", wantErr
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, 0, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.True(t, result.IsFailure())
	assert.Same(t, wantErr, result.Err())
	assert.Equal(t, 1, result.Attempts())
	assert.Equal(t, 1, callCount)
	assert.Empty(t, sleeper.delays)
}

// plainClassified has no IsRetryable method and must not be retried.
type plainClassified struct{}

func (plainClassified) Error() string              { return "plain" }
func (plainClassified) Severity() failure.Severity { return failure.SeverityRecoverable }

func TestRetry_ErrorWithoutRetryableFlagIsFinal(t *testing.T) {
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		return "", plainClassified{}
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, 5, rateLimitBackoff()), fn, retry.WithSleeper(&recordingSleeper{}))

	assert.True(t, result.IsFailure())
	assert.Equal(t, 1, callCount)
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	lastErr := &mockError{msg: "still limited", retryable: true}
	fn := func() (string, failure.ClassifiedError) {
		return "", lastErr
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, 3, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.True(t, result.IsFailure())
	assert.Equal(t, 3, result.Attempts())
	assert.Len(t, sleeper.delays, 2)

	var retryErr *retry.RetryError
	require.ErrorAs(t, result.Err(), &retryErr)
	assert.Equal(t, retry.ErrExhaustedAttempts, retryErr.Cause)
	assert.True(t, retryErr.IsRetryable())
	assert.ErrorIs(t, result.Err(), lastErr)
}

func TestRetry_NegativeAttemptsRejected(t *testing.T) {
	called := false
	fn := func() (string, failure.ClassifiedError) {
		called = true
		return "", nil
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(0, 42, -1, rateLimitBackoff()), fn)

	var retryErr *retry.RetryError
	require.ErrorAs(t, result.Err(), &retryErr)
	assert.Equal(t, retry.ErrInvalidAttempts, retryErr.Cause)
	assert.False(t, called)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeper := timeutil.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		return "", &mockError{msg: "429", retryable: true}
	}

	result := retry.Retry(ctx, retry.NewRetryParam(0, 42, 0, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.True(t, result.IsFailure())
	assert.Equal(t, 1, callCount)

	var retryErr *retry.RetryError
	require.ErrorAs(t, result.Err(), &retryErr)
	assert.Equal(t, retry.ErrCancelled, retryErr.Cause)
	assert.True(t, errors.Is(result.Err(), context.Canceled))
}

func TestRetry_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	fn := func() (string, failure.ClassifiedError) {
		called = true
		return "", nil
	}

	result := retry.Retry(ctx, retry.NewRetryParam(0, 42, 3, rateLimitBackoff()), fn)

	assert.True(t, result.IsFailure())
	assert.False(t, called)
	assert.Equal(t, 0, result.Attempts())
}

func TestRetry_OnRetryHook(t *testing.T) {
	type call struct {
		attempt int
		delay   time.Duration
	}
	var calls []call
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		if callCount < 3 {
			return "", &mockError{msg: "429", retryable: true}
		}
		return "ok", nil
	}

	result := retry.Retry(
		context.Background(),
		retry.NewRetryParam(0, 42, 0, rateLimitBackoff()),
		fn,
		retry.WithSleeper(&recordingSleeper{}),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			calls = append(calls, call{attempt: attempt, delay: delay})
		}),
	)

	require.NoError(t, result.Err())
	assert.Equal(t, []call{{1, time.Second}, {2, 2 * time.Second}}, calls)
}

func TestRetry_JitterStaysWithinBounds(t *testing.T) {
	sleeper := &recordingSleeper{}
	jitter := 100 * time.Millisecond
	callCount := 0
	fn := func() (string, failure.ClassifiedError) {
		callCount++
		if callCount < 4 {
			return "", &mockError{msg: "429", retryable: true}
		}
		return "ok", nil
	}

	result := retry.Retry(context.Background(), retry.NewRetryParam(jitter, 7, 0, rateLimitBackoff()), fn, retry.WithSleeper(sleeper))

	require.NoError(t, result.Err())
	base := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	require.Len(t, sleeper.delays, len(base))
	for i, d := range sleeper.delays {
		assert.GreaterOrEqual(t, d, base[i])
		assert.Less(t, d, base[i]+jitter)
	}
}

func TestBackoff_StateMachine(t *testing.T) {
	b := retry.NewBackoff(retry.NewRetryParam(0, 1, 0, rateLimitBackoff()))

	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, time.Duration(0), b.Delay())

	assert.Equal(t, time.Second, b.Next())
	assert.Equal(t, 2*time.Second, b.Next())
	assert.Equal(t, 2, b.Attempt())
	assert.Equal(t, 2*time.Second, b.Delay())
}
