package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind normalizes why a category search produced nothing.
type ErrorKind string

const (
	// ErrorConfiguration indicates missing credentials or endpoints
	ErrorConfiguration ErrorKind = "configuration"

	// ErrorTransient indicates a network failure or upstream outage
	ErrorTransient ErrorKind = "transient"

	// ErrorTimeout indicates the branch did not answer in time
	ErrorTimeout ErrorKind = "timeout"

	// ErrorBadData indicates the upstream returned a malformed response
	ErrorBadData ErrorKind = "bad_data"
)

// Error wraps a category search failure with its kind.
type Error struct {
	Kind       ErrorKind
	Category   Category
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("search %s [%s]: %s: %v", e.Category, e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("search %s [%s]: %s", e.Category, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized search error.
func NewError(kind ErrorKind, category Category, message string, underlying error) *Error {
	return &Error{Kind: kind, Category: category, Message: message, Underlying: underlying}
}

// KindOf extracts the error kind. Context deadline errors count as timeouts and
// everything unrecognised as transient.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorTransient
}

// IsRetryable reports whether repeating the call could succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrorTransient, ErrorTimeout:
		return true
	}
	return false
}

// Sentinel errors for backend setup.
var (
	ErrNotConfigured  = errors.New("search backend not configured")
	ErrUnknownBackend = errors.New("unknown search backend")
)
