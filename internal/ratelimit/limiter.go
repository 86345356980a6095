// Package ratelimit bounds how many relay negotiations the gateway starts.
//
// Every negotiation opens an outbound relay session, so the gateway caps both
// the number in flight and the rate at which new ones start.
package ratelimit

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrTooManyInFlight = errors.New("too many negotiations in flight")
)

// Limiter is safe for concurrent use. A nil *Limiter allows everything.
type Limiter struct {
	inFlight *semaphore.Weighted
	rate     *rate.Limiter
	held     atomic.Int64
}

// New returns a limiter allowing maxInFlight concurrent holders and
// perSecond acquisitions per second with the given burst. Zero disables the
// corresponding limit.
func New(maxInFlight int, perSecond float64, burst int) *Limiter {
	l := &Limiter{}
	if maxInFlight > 0 {
		l.inFlight = semaphore.NewWeighted(int64(maxInFlight))
	}
	if perSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		l.rate = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return l
}

// Acquire reserves a slot without blocking. The returned release func must be
// called exactly once when the negotiation completes.
func (l *Limiter) Acquire() (release func(), err error) {
	if l == nil {
		return func() {}, nil
	}
	if l.inFlight != nil && !l.inFlight.TryAcquire(1) {
		return nil, ErrTooManyInFlight
	}
	if l.rate != nil && !l.rate.Allow() {
		if l.inFlight != nil {
			l.inFlight.Release(1)
		}
		return nil, ErrRateLimited
	}

	l.held.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			l.held.Add(-1)
			if l.inFlight != nil {
				l.inFlight.Release(1)
			}
		})
	}, nil
}

// InFlight reports how many acquired slots have not been released.
func (l *Limiter) InFlight() int {
	if l == nil {
		return 0
	}
	return int(l.held.Load())
}
