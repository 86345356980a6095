package links

import (
	"errors"
	"sync"
	"testing"
	"time"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func TestStore_UseCountsDown(t *testing.T) {
	clock := newFakeClock()
	s := New(clock)

	link, err := s.Create("front", time.Minute, 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !link.ExpiresAt.Equal(clock.Now().Add(time.Minute)) {
		t.Fatalf("ExpiresAt=%v", link.ExpiresAt)
	}

	for i := 0; i < 2; i++ {
		got, err := s.Use(link.ID)
		if err != nil {
			t.Fatalf("Use #%d: %v", i+1, err)
		}
		if got != "front" {
			t.Fatalf("value=%q, want front", got)
		}
	}
	if _, err := s.Use(link.ID); !errors.Is(err, ErrGone) {
		t.Fatalf("Use after exhaustion err=%v, want ErrGone", err)
	}

	// The exhausted link is kept until it expires so callers can tell it
	// apart from an unknown ID.
	clock.Advance(time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if _, err := s.Use(link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Use after sweep err=%v, want ErrNotFound", err)
	}
}

func TestStore_Expiry(t *testing.T) {
	clock := newFakeClock()
	s := New(clock)

	link, err := s.Create("front", time.Minute, 5)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if _, err := s.Use(link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Use after expiry err=%v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Fatalf("Len=%d after expired Use, want 0", s.Len())
	}
}

func TestStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	s := New(clock)

	if _, err := s.Create("short", time.Second, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("long", time.Hour, 1); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.Advance(time.Minute)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("Len=%d, want 1", s.Len())
	}
}

func TestStore_CreateValidation(t *testing.T) {
	s := New(nil)
	if _, err := s.Create("", time.Minute, 1); err == nil {
		t.Fatalf("empty value accepted")
	}
	if _, err := s.Create("x", 0, 1); err == nil {
		t.Fatalf("zero ttl accepted")
	}
	if _, err := s.Create("x", time.Minute, 0); err == nil {
		t.Fatalf("zero uses accepted")
	}
}

func TestStore_ConcurrentUseHonoursLimit(t *testing.T) {
	s := New(nil)
	link, err := s.Create("front", time.Minute, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		used int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Use(link.ID); err == nil {
				mu.Lock()
				used++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if used != 10 {
		t.Fatalf("used=%d, want 10", used)
	}
}
