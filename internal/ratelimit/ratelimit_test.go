package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(2, time.Minute).WithClock(clock.Now), clock
}

func TestCheck_TwoAdmitsThenReject(t *testing.T) {
	l, clock := newTestLimiter()

	if d := l.Check("s1"); !d.Admitted {
		t.Fatal("expected first attempt admitted")
	}
	clock.Advance(10 * time.Second)
	if d := l.Check("s1"); !d.Admitted {
		t.Fatal("expected second attempt admitted")
	}
	clock.Advance(5 * time.Second)
	d := l.Check("s1")
	if d.Admitted {
		t.Fatal("expected third attempt rejected")
	}
	if d.RetryAfter != 45*time.Second {
		t.Errorf("expected retry after 45s, got %v", d.RetryAfter)
	}
	if d.RetryAfterSeconds() != 45 {
		t.Errorf("expected 45 seconds, got %d", d.RetryAfterSeconds())
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	l.Check("a")
	l.Check("a")
	if d := l.Check("b"); !d.Admitted {
		t.Error("expected key b to be admitted")
	}
	if d := l.Check("a"); d.Admitted {
		t.Error("expected key a to be rejected")
	}
}

func TestCheck_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter()
	l.Check("k")
	clock.Advance(30 * time.Second)
	l.Check("k")

	clock.Advance(30 * time.Second) // first attempt now exactly a window old
	if d := l.Check("k"); !d.Admitted {
		t.Fatal("expected admission once the oldest attempt left the window")
	}
	if d := l.Check("k"); d.Admitted {
		t.Fatal("expected rejection with two attempts in window")
	}
}

func TestCheck_RejectionDoesNotRecord(t *testing.T) {
	l, clock := newTestLimiter()
	l.Check("k")
	l.Check("k")
	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		l.Check("k")
	}
	clock.Advance(55 * time.Second) // 60s after the first two
	if d := l.Check("k"); !d.Admitted {
		t.Error("rejected attempts must not extend the window")
	}
}

func TestCheck_RetryAfterRoundsUp(t *testing.T) {
	l, clock := newTestLimiter()
	l.Check("k")
	l.Check("k")
	clock.Advance(59*time.Second + 500*time.Millisecond)
	d := l.Check("k")
	if d.Admitted {
		t.Fatal("expected rejection")
	}
	if d.RetryAfterSeconds() != 1 {
		t.Errorf("expected 1 second, got %d", d.RetryAfterSeconds())
	}
}

func TestNew_Defaults(t *testing.T) {
	l := New(0, 0)
	if l.Max() != DefaultMax || l.Window() != DefaultWindow {
		t.Errorf("expected defaults, got max=%d window=%v", l.Max(), l.Window())
	}
}

func TestCheck_IdleKeysAreSwept(t *testing.T) {
	l, clock := newTestLimiter()

	l.Check("ip:10.0.0.1")
	l.Check("ip:10.0.0.2")
	clock.Advance(30 * time.Second)
	l.Check("ip:10.0.0.3")
	if len(l.buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(l.buckets))
	}

	clock.Advance(40 * time.Second)
	l.Check("ip:10.0.0.4")
	if len(l.buckets) != 2 {
		t.Errorf("expected idle keys swept leaving 2 buckets, got %d", len(l.buckets))
	}
	if _, ok := l.buckets["ip:10.0.0.1"]; ok {
		t.Error("expected ip:10.0.0.1 removed")
	}
	if _, ok := l.buckets["ip:10.0.0.3"]; !ok {
		t.Error("expected ip:10.0.0.3 kept while inside the window")
	}
}
