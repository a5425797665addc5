// Package ratelimit provides a sliding-window call limiter used to pace
// requests against the forum API's per-minute quota.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows at most maxCalls calls per period. Acquire blocks until
// a slot is free.
type Limiter struct {
	mu       sync.Mutex
	calls    []time.Time
	maxCalls int
	period   time.Duration

	// overridable in tests
	now   func() time.Time
	sleep func(time.Duration)
}

func New(maxCalls int, period time.Duration) *Limiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Acquire records one call, sleeping first if the window is full.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.trim(now)

	if len(l.calls) >= l.maxCalls {
		wait := l.period - now.Sub(l.calls[0])
		if wait > 0 {
			l.sleep(wait)
		}
		now = l.now()
		l.trim(now)
	}

	l.calls = append(l.calls, now)
}

// trim drops calls older than the window.
func (l *Limiter) trim(now time.Time) {
	cutoff := now.Add(-l.period)
	kept := l.calls[:0]
	for _, c := range l.calls {
		if c.After(cutoff) {
			kept = append(kept, c)
		}
	}
	l.calls = kept
}
