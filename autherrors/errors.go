// Package autherrors defines the error kinds reported by the Orbit auth SDK.
package autherrors

import (
	"errors"
	"fmt"
)

// Kind classifies an SDK failure. The set is fixed.
type Kind string

const (
	InvalidConfiguration Kind = "INVALID_CONFIGURATION"
	AuthorizationFailed  Kind = "AUTHORIZATION_FAILED"
	TokenExchangeFailed  Kind = "TOKEN_EXCHANGE_FAILED"
	TokenRefreshFailed   Kind = "TOKEN_REFRESH_FAILED"
	SessionNotFound      Kind = "SESSION_NOT_FOUND"
	UserNotFound         Kind = "USER_NOT_FOUND"
	InvalidToken         Kind = "INVALID_TOKEN"
	// TokenURLNotFound is reserved; nothing in the SDK reports it yet.
	TokenURLNotFound Kind = "TOKEN_URL_NOT_FOUND"
)

// Error is a tagged SDK error. Message is meant for display.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, autherrors.New(k, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind that keeps err in its chain.
// The message defaults to err's text when empty.
func Wrap(kind Kind, err error, message string) *Error {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
