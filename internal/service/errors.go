package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/blog-platform/internal/repository"
)

// Kind classifies an Error for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindAccountState
	KindNotFound
	KindConflict
	KindRateLimited
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindAccountState:
		return "account_state"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the single error type returned by the services.  Message is
// safe to show to clients; Err carries the cause for logs only.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error     { return &Error{Kind: KindValidation, Message: msg} }
func Authentication(msg string) *Error { return &Error{Kind: KindAuthentication, Message: msg} }
func Authorization(msg string) *Error  { return &Error{Kind: KindAuthorization, Message: msg} }
func AccountState(msg string) *Error   { return &Error{Kind: KindAccountState, Message: msg} }
func NotFound(msg string) *Error       { return &Error{Kind: KindNotFound, Message: msg} }
func Conflict(msg string) *Error       { return &Error{Kind: KindConflict, Message: msg} }

// RateLimited reports a rejected request and when the caller may retry.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}

// Unavailable wraps a failure the caller may retry later.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

// Internal wraps an unexpected failure.  The message never reaches clients.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

const (
	msgInvalidCredentials = "invalid credentials"
	msgInvalidToken       = "invalid token"
	msgInvalidCode        = "invalid or expired code"
)

func invalidCredentials(cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msgInvalidCredentials, Err: cause}
}

func invalidToken(cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msgInvalidToken, Err: cause}
}

// storeError translates a repository failure into a service error.
func storeError(op string, err error) error {
	var dup interface{ Field() string }
	switch {
	case errors.As(err, &dup):
		return &Error{Kind: KindConflict, Message: dup.Field() + " already exists", Err: err}
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConflict, Message: "account already exists", Err: err}
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: "account not found", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Unavailable("service temporarily unavailable", fmt.Errorf("%s: %w", op, err))
	default:
		return Internal(op, err)
	}
}
