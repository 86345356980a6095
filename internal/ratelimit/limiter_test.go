package ratelimit

import (
	"errors"
	"testing"
)

func TestLimiter_InFlightCap(t *testing.T) {
	l := New(2, 0, 0)

	r1, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire #1: %v", err)
	}
	r2, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire #2: %v", err)
	}
	if _, err := l.Acquire(); !errors.Is(err, ErrTooManyInFlight) {
		t.Fatalf("Acquire #3 err=%v, want ErrTooManyInFlight", err)
	}

	r1()
	r1() // second call is a no-op
	r3, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if _, err := l.Acquire(); !errors.Is(err, ErrTooManyInFlight) {
		t.Fatalf("double release freed an extra slot: err=%v", err)
	}
	r2()
	r3()
}

func TestLimiter_Rate(t *testing.T) {
	l := New(0, 0.001, 2)

	for i := 0; i < 2; i++ {
		release, err := l.Acquire()
		if err != nil {
			t.Fatalf("Acquire #%d: %v", i+1, err)
		}
		release()
	}
	if _, err := l.Acquire(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err=%v, want ErrRateLimited", err)
	}
}

func TestLimiter_RateRejectionReturnsSlot(t *testing.T) {
	l := New(1, 0.001, 1)

	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	if _, err := l.Acquire(); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err=%v, want ErrRateLimited", err)
	}
	// The rate rejection above must not leak the in-flight slot.
	if !l.inFlight.TryAcquire(1) {
		t.Fatalf("in-flight slot leaked after rate rejection")
	}
}

func TestLimiter_NilAllowsEverything(t *testing.T) {
	var l *Limiter
	release, err := l.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()
}

func TestLimiter_InFlightCount(t *testing.T) {
	l := New(0, 0, 0)
	r1, _ := l.Acquire()
	r2, _ := l.Acquire()
	if got := l.InFlight(); got != 2 {
		t.Fatalf("InFlight=%d, want 2", got)
	}
	r1()
	r1()
	if got := l.InFlight(); got != 1 {
		t.Fatalf("InFlight=%d after double release, want 1", got)
	}
	r2()
	if got := l.InFlight(); got != 0 {
		t.Fatalf("InFlight=%d, want 0", got)
	}
}
