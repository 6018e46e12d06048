package api

import (
	"errors"
	"fmt"

	"civiccircle/internal/session"
)

// Kind classifies API failures for callers that branch on them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidCredentials is a rejected login.
	KindInvalidCredentials
	// KindUnexpectedStatus is any other non-2xx answer.
	KindUnexpectedStatus
	// KindInvalidResponse is a 2xx answer whose body could not be decoded.
	KindInvalidResponse
	// KindNetwork means no answer was received.
	KindNetwork
	// KindUnauthorized means there is no usable session, locally or per the server.
	KindUnauthorized
	// KindConflict is a request contradicting server state, such as joining
	// an event twice.
	KindConflict
	// KindInvalidInput is rejected locally before any request is sent.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindUnexpectedStatus:
		return "unexpected status"
	case KindInvalidResponse:
		return "invalid response"
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Error describes a failed API call.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	// Message is the server's explanation, if it sent one.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "api error"
	}
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Kind, e.Status)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindUnknown if it is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// UserMessage returns a short text suitable for showing to a person.
func UserMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	switch apiErr.Kind {
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindNetwork:
		return "Could not reach the server. Check your connection."
	case KindUnauthorized:
		if errors.Is(apiErr, ErrSessionExpired) {
			return session.SessionExpiredMessage
		}
		return "Please log in first."
	case KindInvalidResponse:
		return "The server sent an unexpected response."
	default:
		return apiErr.Error()
	}
}

func wrapError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return err
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
