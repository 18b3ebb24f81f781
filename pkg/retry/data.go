package retry

import (
	"math/rand"
	"time"

	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
)

// RetryParam holds the parameters for retry logic.
// These parameters are passed from outside (e.g., config) and should not
// be known by the retry handler internally.
//
// MaxAttempts of 0 means the handler keeps retrying retryable errors
// until it succeeds or the context ends.
type RetryParam struct {
	Jitter       time.Duration
	RandomSeed   int64
	MaxAttempts  int
	BackoffParam timeutil.BackoffParam
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	jitter time.Duration,
	randomSeed int64,
	maxAttempts int,
	backoffParam timeutil.BackoffParam,
) RetryParam {
	return RetryParam{
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		MaxAttempts:  maxAttempts,
		BackoffParam: backoffParam,
	}
}

func (p RetryParam) unlimited() bool {
	return p.MaxAttempts == 0
}

// Backoff is the per-call retry state. A fresh Backoff is created for every
// Retry invocation and is never shared between calls.
type Backoff struct {
	param   RetryParam
	rng     *rand.Rand
	attempt int
	delay   time.Duration
}

func NewBackoff(param RetryParam) *Backoff {
	return &Backoff{
		param: param,
		rng:   rand.New(rand.NewSource(param.RandomSeed)),
	}
}

// Next advances the state machine by one failed attempt and returns the delay
// to wait before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	b.delay = timeutil.ExponentialBackoffDelay(b.attempt, b.param.Jitter, b.rng, b.param.BackoffParam)
	return b.delay
}

// Attempt returns the number of failed attempts seen so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Delay returns the most recently computed delay.
func (b *Backoff) Delay() time.Duration {
	return b.delay
}

// Result is the outcome of a Retry call.
type Result[T any] struct {
	value    T
	err      error
	attempts int
	delays   []time.Duration
}

func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) Err() error {
	return r.err
}

// Attempts is the number of times fn was invoked.
func (r Result[T]) Attempts() int {
	return r.attempts
}

// Delays lists every backoff delay that was slept, in order.
func (r Result[T]) Delays() []time.Duration {
	return r.delays
}

func (r Result[T]) IsFailure() bool {
	return r.err != nil
}

type Option func(*options)

type options struct {
	sleeper timeutil.Sleeper
	onRetry func(attempt int, err error, delay time.Duration)
}

// WithSleeper replaces the wall-clock sleeper, mainly for tests.
func WithSleeper(s timeutil.Sleeper) Option {
	return func(o *options) {
		if s != nil {
			o.sleeper = s
		}
	}
}

// WithOnRetry registers a hook invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}
