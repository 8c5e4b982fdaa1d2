package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Recognition failures split into retriable classes
// (rate limit, transient network, malformed structured output) and
// everything else, which is permanent for that page.
var (
	ErrNoInput         = errors.New("no input pages")
	ErrEmptyPage       = errors.New("empty page image")
	ErrRateLimited     = errors.New("recognition rate limited")
	ErrTransient       = errors.New("transient recognition failure")
	ErrMalformedOutput = errors.New("malformed recognition output")
	ErrUnavailable     = errors.New("recognition service unavailable")
)

// Retriable reports whether a recognition error is worth retrying with
// backoff. Malformed output is retriable too, but callers budget it a
// single retry rather than the full schedule.
func Retriable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrMalformedOutput) ||
		errors.Is(err, ErrUnavailable)
}

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
