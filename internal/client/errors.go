package client

import (
	"errors"
	"fmt"
)

// Kind tells callers which class of failure an Error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredential
	KindTransport
	KindRemoteRejection
	KindPollTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredential:
		return "invalid credential"
	case KindTransport:
		return "transport failure"
	case KindRemoteRejection:
		return "remote rejection"
	case KindPollTimeout:
		return "poll timeout"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrInvalidCredential = &Error{Kind: KindInvalidCredential}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrRemoteRejection   = &Error{Kind: KindRemoteRejection}
	ErrPollTimeout       = &Error{Kind: KindPollTimeout}
)

// Error is the single error type returned by Open Cloud operations.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "create task".
	Op  string
	URL string

	// StatusCode is set whenever a response was received.
	StatusCode int
	// Code and Message are copied from the API error body for KindRemoteRejection.
	Code    string
	Message string

	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = fmt.Sprintf("%s failed: %s", e.Op, msg)
	}

	switch e.Kind {
	case KindRemoteRejection:
		msg = fmt.Sprintf("%s (HTTP %d %s): %s", msg, e.StatusCode, e.Code, e.Message)
	case KindPollTimeout:
		if e.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Message)
		}
	default:
		if e.StatusCode != 0 {
			msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
		}
		if e.URL != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.URL)
		}
		if e.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Message)
		}
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, ErrPollTimeout) works on any
// wrapped *Error of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t == sentinel(t.Kind) && e.Kind == t.Kind
}

func sentinel(k Kind) *Error {
	switch k {
	case KindInvalidCredential:
		return ErrInvalidCredential
	case KindTransport:
		return ErrTransport
	case KindRemoteRejection:
		return ErrRemoteRejection
	case KindPollTimeout:
		return ErrPollTimeout
	default:
		return nil
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
