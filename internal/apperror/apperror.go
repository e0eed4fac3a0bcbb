// Package apperror centralizes the error taxonomy of spec §7 so the scraping,
// normalization, and HTTP layers agree on one stable, string-serialized set of
// error types instead of each wrapping ad hoc.
package apperror

import (
	"errors"
	"fmt"

	"github.com/XavierBriggs/fortuna/internal/domain"
)

// Error is a typed, user-surfaceable failure carrying the §7 taxonomy.
type Error struct {
	Type        domain.ErrorType
	Message     string
	Platform    *domain.Source
	Recoverable bool
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(t domain.ErrorType, msg string, recoverable bool, cause error) *Error {
	return &Error{Type: t, Message: domain.TruncateMessage(msg), Recoverable: recoverable, Cause: cause}
}

// Network wraps a transient transport failure. Retryable.
func Network(msg string, cause error) *Error { return new_(domain.ErrNetwork, msg, true, cause) }

// Timeout marks a deadline overrun. Retryable at the caller's discretion.
func Timeout(msg string, cause error) *Error { return new_(domain.ErrTimeout, msg, true, cause) }

// RateLimit marks a 429 response. Retryable.
func RateLimit(msg string, cause error) *Error { return new_(domain.ErrRateLimit, msg, true, cause) }

// Parse marks a malformed upstream payload. Not retried.
func Parse(msg string, cause error) *Error { return new_(domain.ErrParse, msg, false, cause) }

// Storage marks a persistence failure. The enclosing transaction rolls back.
func Storage(msg string, cause error) *Error { return new_(domain.ErrStorage, msg, false, cause) }

// Mapping marks a per-market normalization failure. The offending market is dropped.
func Mapping(msg string, cause error) *Error { return new_(domain.ErrMapping, msg, false, cause) }

// WithPlatform attaches the originating platform to an Error.
func (e *Error) WithPlatform(s domain.Source) *Error {
	e.Platform = &s
	return e
}

// IsRetryable reports whether err (or a wrapped *Error within it) permits retry.
func IsRetryable(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}

// As is a convenience wrapper over errors.As for extracting the typed error.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}
