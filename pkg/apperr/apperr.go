// Package apperr defines the domain error taxonomy shared by handlers,
// services and repositories. Each kind maps to one HTTP status at the
// boundary; internal detail never reaches the client.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindValidation: malformed or missing input; caller can resubmit.
	KindValidation Kind = iota + 1
	// KindNotFound: unknown booking/payment/room/flight.
	KindNotFound
	// KindConflict: inventory overlap or insufficient seats.
	KindConflict
	// KindSignature: authenticity failure; logged as potential tampering,
	// never retried automatically.
	KindSignature
	// KindState: operation invalid for the current lifecycle.
	KindState
	// KindGateway: upstream payment provider failure or timeout.
	KindGateway
)

// Error carries a kind, a client-safe message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns an inventory conflict error.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Signature returns a signature verification error.
func Signature(format string, args ...interface{}) *Error {
	return &Error{Kind: KindSignature, Msg: fmt.Sprintf(format, args...)}
}

// State returns a lifecycle state error.
func State(format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Msg: fmt.Sprintf(format, args...)}
}

// Gateway wraps an upstream provider failure behind a client-safe message.
func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// Message returns the client-safe message of err, or a generic fallback.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}
