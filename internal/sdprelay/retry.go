package sdprelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// OfferFunc produces a fresh SDP offer. Retry calls it once per attempt.
type OfferFunc func(ctx context.Context) (string, error)

type RetryResult struct {
	// Offer is the offer that Answer belongs to.
	Offer    string
	Answer   string
	Attempts int
}

// DefaultBackOff is an exponential back-off capped at three retries.
func DefaultBackOff() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     500 * time.Millisecond,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         5 * time.Second,
		MaxElapsedTime:      time.Minute,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, 3)
}

// Retryable reports whether a negotiation failure may be retried with a new
// offer. Relay rejections and contract violations are final.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindUnreachable, KindTimeout, KindConnectionClosed:
		return true
	default:
		return false
	}
}

// Retry negotiates with n until it succeeds, a non-retryable error occurs or
// b gives up. Every attempt uses a new offer from newOffer. A nil b selects
// DefaultBackOff.
func Retry(ctx context.Context, n Negotiator, source string, newOffer OfferFunc, timeout time.Duration, b backoff.BackOff) (RetryResult, error) {
	if newOffer == nil {
		return RetryResult{}, fmt.Errorf("%w: nil offer func", ErrInvalidArgument)
	}
	return retry(ctx, n, source, newOffer, timeout, b, Retryable)
}

// RetrySameOffer resends one offer, and only after KindUnreachable: the relay
// never saw the offer then. After a timeout or a closed session the relay may
// already hold an answer for it, so those failures are final.
func RetrySameOffer(ctx context.Context, n Negotiator, source, offer string, timeout time.Duration, b backoff.BackOff) (RetryResult, error) {
	sameOffer := func(context.Context) (string, error) { return offer, nil }
	return retry(ctx, n, source, sameOffer, timeout, b, func(err error) bool {
		kind, ok := KindOf(err)
		return ok && kind == KindUnreachable
	})
}

func retry(ctx context.Context, n Negotiator, source string, newOffer OfferFunc, timeout time.Duration, b backoff.BackOff, retryable func(error) bool) (RetryResult, error) {
	if n == nil {
		return RetryResult{}, fmt.Errorf("%w: nil negotiator", ErrInvalidArgument)
	}
	if b == nil {
		b = DefaultBackOff()
	}

	var res RetryResult
	operation := func() error {
		res.Attempts++
		offer, err := newOffer(ctx)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("generate offer: %w", err))
		}
		answer, err := n.Negotiate(ctx, source, offer, timeout)
		if err != nil {
			if !retryable(err) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			return err
		}
		res.Offer = offer
		res.Answer = answer
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return RetryResult{Attempts: res.Attempts}, err
	}
	return res, nil
}
