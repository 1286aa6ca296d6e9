package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
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

func newTestLimiter(t *testing.T, window time.Duration, quota int) (*Limiter, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewWithClock(config.RateLimitConfig{Window: window, Quota: quota}, zap.NewNop(), clk.Now)
	t.Cleanup(l.Close)
	return l, clk
}

func TestConsumeWindowScenario(t *testing.T) {
	// quota 2 per 60s: allow, allow, deny with retry hint, reset after the window
	l, clk := newTestLimiter(t, 60*time.Second, 2)

	d := l.Consume("u1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	clk.Advance(1 * time.Second)
	d = l.Consume("u1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	clk.Advance(1 * time.Second)
	d = l.Consume("u1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 58*time.Second, d.RetryAfter)

	// t=61s: window has elapsed, fresh count
	clk.Advance(59 * time.Second)
	d = l.Consume("u1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestConsumeRetryAfterRoundsUp(t *testing.T) {
	l, clk := newTestLimiter(t, 60*time.Second, 1)

	require.True(t, l.Consume("u1").Allowed)
	clk.Advance(500 * time.Millisecond)

	d := l.Consume("u1")
	require.False(t, d.Allowed)
	// 59.5s remaining rounds up to a whole minute
	assert.Equal(t, 60*time.Second, d.RetryAfter)
}

func TestIdentitiesAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, time.Minute, 1)

	assert.True(t, l.Consume("u1").Allowed)
	assert.False(t, l.Consume("u1").Allowed)
	assert.True(t, l.Consume("u2").Allowed)
}

func TestConcurrentConsumeNeverOverAdmits(t *testing.T) {
	const quota = 50
	const callers = 200
	l, _ := newTestLimiter(t, time.Minute, quota)

	var allowed int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			if l.Consume("shared").Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(quota), allowed)
}

func TestSnapshotDoesNotConsume(t *testing.T) {
	l, clk := newTestLimiter(t, time.Minute, 2)

	remaining, retryAfter := l.Snapshot("u1")
	assert.Equal(t, 2, remaining)
	assert.Zero(t, retryAfter)

	l.Consume("u1")
	for i := 0; i < 5; i++ {
		remaining, _ = l.Snapshot("u1")
		assert.Equal(t, 1, remaining)
	}

	l.Consume("u1")
	clk.Advance(10 * time.Second)
	remaining, retryAfter = l.Snapshot("u1")
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 50*time.Second, retryAfter)

	// snapshot after the window reports a full budget again
	clk.Advance(51 * time.Second)
	remaining, retryAfter = l.Snapshot("u1")
	assert.Equal(t, 2, remaining)
	assert.Zero(t, retryAfter)
}

func TestSweepDropsIdleWindows(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	cfg := config.RateLimitConfig{Window: 50 * time.Millisecond, Quota: 1, SweepInterval: 10 * time.Millisecond}
	l := NewWithClock(cfg, zap.NewNop(), clk.Now)
	t.Cleanup(l.Close)

	l.Consume("idle")
	clk.Advance(time.Second)

	assert.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		_, ok := l.entries["idle"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestDenialsAreNotRefunded(t *testing.T) {
	l, clk := newTestLimiter(t, time.Minute, 1)

	require.True(t, l.Consume("u1").Allowed)
	for i := 0; i < 3; i++ {
		assert.False(t, l.Consume("u1").Allowed)
	}

	// denied attempts must not have extended or reset the window
	clk.Advance(60 * time.Second)
	assert.True(t, l.Consume("u1").Allowed)
}
