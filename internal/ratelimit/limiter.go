package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/girderhq/girder/internal/common/config"
	"go.uber.org/zap"
)

// Decision is the outcome of one Consume call. A denial is a normal result,
// not an error; RetryAfter tells the caller when the window resets.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces a fixed-window quota per caller identity. Each identity
// counts against its own window; callers never contend on a shared counter.
type Limiter struct {
	window time.Duration
	quota  int
	now    func() time.Time
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

type entry struct {
	mu       sync.Mutex
	start    time.Time
	count    int
	lastSeen time.Time
}

// New creates a limiter with the configured window and quota and starts the
// background sweep that drops idle windows.
func New(cfg config.RateLimitConfig, logger *zap.Logger) *Limiter {
	return NewWithClock(cfg, logger, time.Now)
}

// NewWithClock creates a limiter with an injected clock. Tests use this to
// step through window boundaries without sleeping.
func NewWithClock(cfg config.RateLimitConfig, logger *zap.Logger, now func() time.Time) *Limiter {
	cfg.SetRateLimitDefaults()
	l := &Limiter{
		window:  cfg.Window,
		quota:   cfg.Quota,
		now:     now,
		logger:  logger.Named("ratelimit"),
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go l.sweep(cfg.SweepInterval)
	return l
}

// Consume performs the atomic check-and-increment for one unit. Units are not
// refunded if the caller later gives up.
func (l *Limiter) Consume(identity string) Decision {
	e := l.entry(identity)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	e.lastSeen = now

	windowEnd := e.start.Add(l.window)
	if e.count == 0 || !now.Before(windowEnd) {
		// first call or elapsed window starts a fresh one
		e.start = now
		e.count = 1
		return Decision{Allowed: true, Remaining: l.quota - 1}
	}

	if e.count < l.quota {
		e.count++
		return Decision{Allowed: true, Remaining: l.quota - e.count}
	}

	retryAfter := ceilSeconds(windowEnd.Sub(now))
	l.logger.Warn("rate limit exceeded",
		zap.String("identity", identity),
		zap.Int("quota", l.quota),
		zap.Duration("retry_after", retryAfter))
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

// Snapshot reports the identity's remaining budget without consuming a unit.
// RetryAfter is zero unless the window is exhausted.
func (l *Limiter) Snapshot(identity string) (remaining int, retryAfter time.Duration) {
	l.mu.RLock()
	e, ok := l.entries[identity]
	l.mu.RUnlock()
	if !ok {
		return l.quota, 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	windowEnd := e.start.Add(l.window)
	if e.count == 0 || !now.Before(windowEnd) {
		return l.quota, 0
	}
	remaining = l.quota - e.count
	if remaining <= 0 {
		return 0, ceilSeconds(windowEnd.Sub(now))
	}
	return remaining, 0
}

// Close stops the background sweep.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) entry(identity string) *entry {
	l.mu.RLock()
	e, ok := l.entries[identity]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[identity]; ok {
		return e
	}
	e = &entry{}
	l.entries[identity] = e
	return e
}

// sweep drops identities that have been idle for at least two full windows.
func (l *Limiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-2 * l.window)
			l.mu.Lock()
			for id, e := range l.entries {
				e.mu.Lock()
				idle := e.lastSeen.Before(cutoff)
				e.mu.Unlock()
				if idle {
					delete(l.entries, id)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ceilSeconds rounds a positive duration up to whole seconds.
func ceilSeconds(d time.Duration) time.Duration {
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
