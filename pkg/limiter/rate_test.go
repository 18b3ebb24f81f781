package limiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/pyq-crawler/pkg/limiter"
	"github.com/rohmanhakim/pyq-crawler/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(base time.Duration) (*limiter.ConcurrentRateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(base)
	rl.SetRandomSeed(42)
	rl.SetClock(clock.Now)
	return rl, clock
}

func TestNewConcurrentRateLimiter(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetBaseDelay(time.Second)
	rl.SetJitter(100 * time.Millisecond)

	assert.Equal(t, time.Second, rl.BaseDelay())
	assert.Equal(t, 100*time.Millisecond, rl.Jitter())
	assert.NotNil(t, rl.HostTimings())
	assert.Empty(t, rl.HostTimings())
}

func TestResolveDelay_UnknownHostDoesNotWait(t *testing.T) {
	rl, _ := newLimiter(time.Second)
	assert.Equal(t, time.Duration(0), rl.ResolveDelay("web.getmarks.app"))
}

func TestResolveDelay_ZeroBaseDelayDoesNotWait(t *testing.T) {
	rl, _ := newLimiter(0)
	rl.MarkLastFetchAsNow("web.getmarks.app")
	assert.Equal(t, time.Duration(0), rl.ResolveDelay("web.getmarks.app"))
}

func TestResolveDelay_RemainingSpacing(t *testing.T) {
	rl, clock := newLimiter(time.Second)
	host := "web.getmarks.app"

	rl.MarkLastFetchAsNow(host)
	assert.Equal(t, time.Second, rl.ResolveDelay(host))

	clock.Advance(300 * time.Millisecond)
	assert.Equal(t, 700*time.Millisecond, rl.ResolveDelay(host))

	clock.Advance(time.Second)
	assert.Equal(t, time.Duration(0), rl.ResolveDelay(host))
}

func TestResolveDelay_JitterBounds(t *testing.T) {
	rl, _ := newLimiter(time.Second)
	rl.SetJitter(200 * time.Millisecond)
	host := "web.getmarks.app"
	rl.MarkLastFetchAsNow(host)

	for i := 0; i < 100; i++ {
		d := rl.ResolveDelay(host)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1200*time.Millisecond)
	}
}

func TestResolveDelay_HostsAreIndependent(t *testing.T) {
	rl, _ := newLimiter(time.Second)
	rl.MarkLastFetchAsNow("a.example")

	assert.Equal(t, time.Second, rl.ResolveDelay("a.example"))
	assert.Equal(t, time.Duration(0), rl.ResolveDelay("b.example"))
}

func TestWait_SleepsThenMarks(t *testing.T) {
	rl, clock := newLimiter(time.Second)
	host := "web.getmarks.app"

	var slept []time.Duration
	sleeper := timeutil.SleeperFunc(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.Advance(d)
		return nil
	})

	require.NoError(t, rl.Wait(context.Background(), host, sleeper))
	require.NoError(t, rl.Wait(context.Background(), host, sleeper))

	assert.Equal(t, []time.Duration{time.Second}, slept)
	assert.Equal(t, 2, rl.HostTimings()[host].FetchCount())
	assert.Equal(t, clock.Now(), rl.HostTimings()[host].LastFetchAt())
}

func TestWait_ContextCancelled(t *testing.T) {
	rl, _ := newLimiter(time.Minute)
	host := "web.getmarks.app"
	rl.MarkLastFetchAsNow(host)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rl.Wait(ctx, host, timeutil.RealSleeper{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rl.HostTimings()[host].FetchCount())
}

func TestConcurrentAccess(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter()
	rl.SetJitter(5 * time.Millisecond)
	hosts := []string{"a", "b", "c"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				host := hosts[(i+j)%len(hosts)]
				switch j % 4 {
				case 0:
					rl.MarkLastFetchAsNow(host)
				case 1:
					rl.ResolveDelay(host)
				case 2:
					rl.SetBaseDelay(time.Duration(j%3) * time.Microsecond)
				default:
					rl.HostTimings()
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, timing := range rl.HostTimings() {
		total += timing.FetchCount()
	}
	assert.Equal(t, 20*50, total)
}
