package sdprelay

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a negotiation failed.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota + 1
	KindTimeout
	KindConnectionClosed
	KindMalformedResponse
	KindRelayRejected
)

var (
	ErrUnreachable       = errors.New("relay unreachable")
	ErrTimeout           = errors.New("relay response timeout")
	ErrConnectionClosed  = errors.New("relay closed the session before responding")
	ErrMalformedResponse = errors.New("malformed relay response")
	ErrRelayRejected     = errors.New("relay rejected offer")

	// ErrInvalidArgument is returned before any connection is attempted.
	ErrInvalidArgument = errors.New("invalid negotiate argument")
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnreachable:
		return "unreachable"
	case KindTimeout:
		return "timeout"
	case KindConnectionClosed:
		return "connection_closed"
	case KindMalformedResponse:
		return "malformed_response"
	case KindRelayRejected:
		return "relay_rejected"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnreachable:
		return ErrUnreachable
	case KindTimeout:
		return ErrTimeout
	case KindConnectionClosed:
		return ErrConnectionClosed
	case KindMalformedResponse:
		return ErrMalformedResponse
	case KindRelayRejected:
		return ErrRelayRejected
	default:
		return nil
	}
}

// Error is returned by Negotiate for every failure past argument validation.
//
// errors.Is matches both the kind's sentinel (ErrTimeout, ...) and the
// underlying cause.
type Error struct {
	Kind ErrorKind
	// Message is the relay's error text for KindRelayRejected.
	Message string
	Err     error
}

func (e *Error) Error() string {
	base := e.Kind.sentinel()
	if base == nil {
		base = errors.New("relay error")
	}
	switch {
	case e.Kind == KindRelayRejected:
		return fmt.Sprintf("sdprelay: %v: %s", base, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("sdprelay: %v: %v", base, e.Err)
	default:
		return fmt.Sprintf("sdprelay: %v", base)
	}
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf reports the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func rejected(message string) *Error {
	return &Error{Kind: KindRelayRejected, Message: message}
}
