// Package links stores short-lived share links. A link maps an opaque ID to
// a value (a camera ID or stream source) and may be used a bounded number of
// times before it expires.
package links

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("links: not found")
	// ErrGone is returned for links that ran out of uses but have not
	// expired yet. Expired links report ErrNotFound.
	ErrGone = errors.New("links: used up")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	value     string
	expiresAt time.Time
	usesLeft  int
}

func (e *entry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Link describes a created link.
type Link struct {
	ID        string
	ExpiresAt time.Time
	Uses      int
}

// Store is safe for concurrent use. The zero value is not usable; call New.
type Store struct {
	clock Clock

	mu      sync.Mutex
	entries map[string]*entry
}

func New(clock Clock) *Store {
	if clock == nil {
		clock = realClock{}
	}
	return &Store{
		clock:   clock,
		entries: make(map[string]*entry),
	}
}

// Create registers value for at most uses lookups within ttl.
func (s *Store) Create(value string, ttl time.Duration, uses int) (Link, error) {
	if value == "" {
		return Link{}, errors.New("links: empty value")
	}
	if ttl <= 0 {
		return Link{}, errors.New("links: ttl must be > 0")
	}
	if uses <= 0 {
		return Link{}, errors.New("links: uses must be > 0")
	}

	id := uuid.NewString()
	expiresAt := s.clock.Now().Add(ttl)

	s.mu.Lock()
	s.entries[id] = &entry{value: value, expiresAt: expiresAt, usesLeft: uses}
	s.mu.Unlock()

	return Link{ID: id, ExpiresAt: expiresAt, Uses: uses}, nil
}

// Use consumes one use of the link and returns its value. Exhausted links
// report ErrGone until they expire; expired links are removed on access.
func (s *Store) Use(id string) (string, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	if e.expired(now) {
		delete(s.entries, id)
		return "", ErrNotFound
	}
	if e.usesLeft <= 0 {
		return "", ErrGone
	}
	e.usesLeft--
	return e.value, nil
}

// Sweep drops expired links and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
