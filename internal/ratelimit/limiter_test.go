package ratelimit

import (
	"testing"
	"time"
)

// fakeClock drives the limiter with a controllable time source. Sleeping
// advances the clock instead of blocking.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
}

func newTestLimiter(maxCalls int, period time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)}
	l := New(maxCalls, period)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAcquireUnderLimit(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		l.Acquire()
	}
	if len(clock.slept) != 0 {
		t.Fatalf("slept %v under the limit", clock.slept)
	}
}

func TestAcquireBlocksWhenFull(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Acquire()
	clock.current = clock.current.Add(10 * time.Second)
	l.Acquire()
	clock.current = clock.current.Add(10 * time.Second)

	// Window is full: the third call waits until the first slot expires.
	l.Acquire()
	if len(clock.slept) != 1 {
		t.Fatalf("slept %d times, want 1", len(clock.slept))
	}
	if got := clock.slept[0]; got != 40*time.Second {
		t.Fatalf("slept %v, want 40s", got)
	}
}

func TestAcquireWindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Acquire()
	l.Acquire()
	clock.current = clock.current.Add(2 * time.Minute)

	// Old calls fell out of the window; no sleep needed.
	l.Acquire()
	if len(clock.slept) != 0 {
		t.Fatalf("slept %v after window expired", clock.slept)
	}
	if len(l.calls) != 1 {
		t.Fatalf("calls = %d, want 1 after trim", len(l.calls))
	}
}

func TestAcquireSequentialBursts(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 9; i++ {
		l.Acquire()
	}
	// The clock never moves on its own, so every fourth call finds a
	// full window and sleeps a whole period to empty it.
	if len(clock.slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(clock.slept))
	}
	if len(l.calls) > 3 {
		t.Fatalf("window holds %d calls, want at most 3", len(l.calls))
	}
}

func TestNewClampsMaxCalls(t *testing.T) {
	l := New(0, time.Minute)
	if l.maxCalls != 1 {
		t.Fatalf("maxCalls = %d, want clamped to 1", l.maxCalls)
	}
}
