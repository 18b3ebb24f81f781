package limiter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
)

// RateLimiter keeps a minimum spacing between requests to the same host.
// It carries no retry state; rate-limit backoff belongs to the retry loop.
type RateLimiter interface {
	ResolveDelay(host string) time.Duration
	MarkLastFetchAsNow(host string)
	Wait(ctx context.Context, host string, sleeper timeutil.Sleeper) error
}

type ConcurrentRateLimiter struct {
	mu          sync.RWMutex
	rngMu       sync.Mutex
	baseDelay   time.Duration
	jitter      time.Duration
	hostTimings map[string]hostTiming
	rng         *rand.Rand
	now         func() time.Time
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hostTimings: make(map[string]hostTiming),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng = rand.New(rand.NewSource(randomSeed))
}

// SetClock replaces the wall clock, for tests.
func (r *ConcurrentRateLimiter) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.lastFetchAt = r.now()
	timing.fetchCount++
	r.hostTimings[host] = timing
}

// ResolveDelay returns how long the caller must still wait before hitting
// host again: max(0, baseDelay + jitter - elapsedSinceLastFetch).
// Unknown hosts and a zero base delay never wait.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.RLock()
	timing, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	now := r.now
	r.mu.RUnlock()

	if !exists || base <= 0 {
		return 0
	}

	r.rngMu.Lock()
	finalDelay := base + timeutil.ComputeJitter(jitter, r.rng)
	r.rngMu.Unlock()

	elapsed := now().Sub(timing.lastFetchAt)
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}
	return 0
}

// Wait sleeps for the resolved delay, then marks host as fetched now.
func (r *ConcurrentRateLimiter) Wait(ctx context.Context, host string, sleeper timeutil.Sleeper) error {
	if delay := r.ResolveDelay(host); delay > 0 {
		if err := sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}
	r.MarkLastFetchAsNow(host)
	return nil
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

// HostTimings returns a copy of the per-host state.
func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}
