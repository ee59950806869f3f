// Package ratelimit implements a process-local sliding-window limiter.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMax    = 2
	DefaultWindow = time.Minute
)

// Decision is the outcome of a Check. RetryAfter is set only when the attempt
// was rejected.
type Decision struct {
	Admitted   bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (d Decision) RetryAfterSeconds() int {
	if d.Admitted || d.RetryAfter <= 0 {
		return 0
	}
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

// Limiter admits at most max attempts per key in any rolling window.
// State lives in memory and resets on restart.
type Limiter struct {
	max     int
	window  time.Duration
	now     func() time.Time
	mu        sync.Mutex
	buckets   map[string][]time.Time
	lastSweep time.Time
}

func New(max int, window time.Duration) *Limiter {
	if max < 1 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:     max,
		window:  window,
		now:     time.Now,
		buckets: make(map[string][]time.Time),
	}
}

// WithClock replaces the time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Max() int { return l.max }

func (l *Limiter) Window() time.Duration { return l.window }

// Check prunes the key's bucket and either records a new attempt or reports
// how long until the oldest surviving attempt leaves the window.
func (l *Limiter) Check(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	kept := l.buckets[key][:0]
	for _, ts := range l.buckets[key] {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.buckets[key] = kept
		wait := l.window - now.Sub(kept[0])
		if wait <= 0 {
			wait = time.Millisecond
		}
		return Decision{RetryAfter: wait}
	}

	l.buckets[key] = append(kept, now)
	return Decision{Admitted: true}
}

// sweep drops keys whose newest attempt has left the window. Caller holds mu.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if len(b) == 0 || now.Sub(b[len(b)-1]) >= l.window {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
