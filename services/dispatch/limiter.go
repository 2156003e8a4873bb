package dispatch

import (
	"sync"
	"time"
)

// RateCaps configures the outbound send ceilings. Zero disables a window.
type RateCaps struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// slidingWindow counts sends inside one rolling window. Timestamps that have
// left the window are pruned on every check, so the count is always the number
// of sends in the last `window` of wall time, never a smoothed refill rate.
type slidingWindow struct {
	window time.Duration
	cap    int
	sends  []time.Time
}

func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	drop := 0
	for drop < len(w.sends) && !w.sends[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		w.sends = append(w.sends[:0], w.sends[drop:]...)
	}
}

func (w *slidingWindow) saturated(now time.Time) bool {
	w.prune(now)
	return len(w.sends) >= w.cap
}

// windowLimiter gates dispatch behind one rolling-window counter per
// configured cap. A job is eligible only when every window is below its cap;
// the check-then-commit across windows runs under one mutex so concurrent
// eligibility checks cannot interleave between check and commit.
type windowLimiter struct {
	mu      sync.Mutex
	windows []*slidingWindow

	// now is swappable for deterministic window tests.
	now func() time.Time
}

func newWindowLimiter(caps RateCaps) *windowLimiter {
	l := &windowLimiter{now: time.Now}
	add := func(n int, window time.Duration) {
		if n > 0 {
			l.windows = append(l.windows, &slidingWindow{window: window, cap: n})
		}
	}
	add(caps.PerMinute, time.Minute)
	add(caps.PerHour, time.Hour)
	add(caps.PerDay, 24*time.Hour)
	return l
}

// Allow records one send if every rolling window is below its cap. A denied
// call records nothing in any window.
func (l *windowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, w := range l.windows {
		if w.saturated(now) {
			return false
		}
	}
	for _, w := range l.windows {
		w.sends = append(w.sends, now)
	}
	return true
}

// Delay reports how long until every window could admit one send, without
// recording anything.
func (l *windowLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var maxDelay time.Duration
	for _, w := range l.windows {
		if !w.saturated(now) {
			continue
		}
		// A slot frees when the send blocking the cap leaves the window.
		blocking := w.sends[len(w.sends)-w.cap]
		if d := blocking.Add(w.window).Sub(now); d > maxDelay {
			maxDelay = d
		}
	}
	return maxDelay
}
