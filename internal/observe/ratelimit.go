package observe

import (
	"sync"
	"time"
)

// RateLimiter gates repetitive log statements in the tick loop to a minimum
// interval. A persistent fault at 50 ticks per second would otherwise emit
// 50 identical lines a second; the limiter lets one through per interval and
// reports how many were suppressed in between.
//
// Safe for concurrent use, though the pipeline drives each limiter from a
// single goroutine.
type RateLimiter struct {
	mu         sync.Mutex
	interval   time.Duration
	last       time.Time
	suppressed int
}

// NewRateLimiter creates a limiter that allows one event per interval. The
// first event always passes.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

// Allow reports whether an event at now should be emitted. When it returns
// true, suppressed is the number of events swallowed since the last emission.
func (l *RateLimiter) Allow(now time.Time) (suppressed int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		l.suppressed++
		return 0, false
	}
	suppressed = l.suppressed
	l.suppressed = 0
	l.last = now
	return suppressed, true
}
