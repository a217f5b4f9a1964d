// Package services defines the business logic of the gateway: the per-user
// client registry, the phone login flow, dialog listing, and analytics
// aggregation. This file centralizes the service-level error taxonomy so that
// every service returns errors callers can classify with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/tg-analytics-gateway/internal/platform"
)

// Error kinds. Failures attributable to the caller or the platform match
// exactly one of these with errors.Is; storage failures are returned wrapped
// but unclassified.
var (
	// ErrConfiguration indicates missing credentials or required fields.
	ErrConfiguration = errors.New("configuration error")

	// ErrAuth indicates the account is not authorized, or a code was rejected.
	ErrAuth = errors.New("not authorized")

	// ErrNotFound indicates a message or entity that is absent or inaccessible.
	ErrNotFound = errors.New("not found")

	// ErrConnection indicates the platform connection could not be established
	// or re-established.
	ErrConnection = errors.New("connection failed")

	// ErrPlatform wraps any other remote failure. The message of the cause is
	// passed through for diagnostics.
	ErrPlatform = errors.New("platform error")
)

// Error is a classified service error. It unwraps to both its Kind and its
// cause, so errors.Is works against either.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func configError(msg string) error { return newError(ErrConfiguration, msg, nil) }

func authError(msg string, cause error) error { return newError(ErrAuth, msg, cause) }

func notFound(msg string, cause error) error { return newError(ErrNotFound, msg, cause) }

func connectionError(cause error) error {
	msg := "could not connect to Telegram"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return newError(ErrConnection, msg, cause)
}

// platformError keeps the cause's message verbatim.
func platformError(cause error) error { return newError(ErrPlatform, "", cause) }

// Kind returns the taxonomy sentinel err belongs to, or nil when err is not a
// classified service error.
func Kind(err error) error {
	for _, k := range []error{ErrConfiguration, ErrAuth, ErrNotFound, ErrConnection, ErrPlatform} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// classified reports whether err already carries a kind, in which case it is
// returned unchanged by the service wrappers.
func classified(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// fromPlatform classifies an error returned by a platform call that is not
// covered by a more specific mapping.
func fromPlatform(err error) error {
	switch {
	case err == nil:
		return nil
	case classified(err):
		return err
	case errors.Is(err, platform.ErrNotConnected):
		return connectionError(err)
	default:
		return platformError(err)
	}
}
