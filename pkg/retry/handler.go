package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/rohmanhakim/pyq-crawler/pkg/failure"
	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
)

// Retry executes fn until it succeeds, returns a non-retryable error, the
// attempt budget runs out, or ctx ends. Between attempts it sleeps for the
// exponential backoff delay computed by a fresh Backoff.
//
// Only errors reporting IsRetryable() == true are retried. Errors that do not
// expose IsRetryable are treated as final.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func() (T, failure.ClassifiedError),
	opts ...Option,
) Result[T] {
	o := options{sleeper: timeutil.RealSleeper{}}
	for _, opt := range opts {
		opt(&o)
	}

	if retryParam.MaxAttempts < 0 {
		return Result[T]{
			err: &RetryError{
				Message: fmt.Sprintf("max attempts must not be negative, got %d", retryParam.MaxAttempts),
				Cause:   ErrInvalidAttempts,
			},
		}
	}

	backoff := NewBackoff(retryParam)
	var delays []time.Duration
	var lastErr failure.ClassifiedError

	for attempt := 1; retryParam.unlimited() || attempt <= retryParam.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelled[T](attempt-1, delays, err, lastErr)
		}

		value, err := fn()
		if err == nil {
			return Result[T]{value: value, attempts: attempt, delays: delays}
		}
		lastErr = err

		if !isErrorRetryable(err) {
			return Result[T]{err: err, attempts: attempt, delays: delays}
		}
		if !retryParam.unlimited() && attempt == retryParam.MaxAttempts {
			break
		}

		backoff.Next()
		if o.onRetry != nil {
			o.onRetry(backoff.Attempt(), err, backoff.Delay())
		}
		if sleepErr := o.sleeper.Sleep(ctx, backoff.Delay()); sleepErr != nil {
			return cancelled[T](attempt, delays, sleepErr, lastErr)
		}
		delays = append(delays, backoff.Delay())
	}

	return Result[T]{
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true,
			Err:       lastErr,
		},
		attempts: retryParam.MaxAttempts,
		delays:   delays,
	}
}

func cancelled[T any](attempts int, delays []time.Duration, ctxErr error, lastErr failure.ClassifiedError) Result[T] {
	msg := ctxErr.Error()
	if lastErr != nil {
		msg = fmt.Sprintf("%v. Last error: %v", ctxErr, lastErr)
	}
	return Result[T]{
		err: &RetryError{
			Message: msg,
			Cause:   ErrCancelled,
			Err:     ctxErr,
		},
		attempts: attempts,
		delays:   delays,
	}
}

func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}
	return false
}
