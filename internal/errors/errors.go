package errors

import (
	"errors"
	"fmt"
)

// SiftError is the structured error type for sarsift.
// It carries enough context (job id, message id, violated invariant) for an
// operator to act on, and maps onto the recoverable/fatal taxonomy.
type SiftError struct {
	// Code is the unique error code (e.g., "ERR_403_DUPLICATE_MEMBER").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Parse, Validation, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs
	// (job_id, part_id, identifier, cluster_id).
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *SiftError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SiftError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SiftError.
func (e *SiftError) Is(target error) bool {
	if t, ok := target.(*SiftError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SiftError) WithDetail(key, value string) *SiftError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new SiftError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SiftError {
	return &SiftError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new SiftError with a formatted message.
func Newf(code string, format string, args ...any) *SiftError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a SiftError from an existing error.
// The error's message becomes the SiftError message.
func Wrap(code string, err error) *SiftError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// CodeOf returns the code of err if it is a SiftError, or "" otherwise.
func CodeOf(err error) string {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error (4XX code). The
// HTTP surface maps these to 400 unless a more specific status applies.
func IsValidation(err error) bool {
	var se *SiftError
	if errors.As(err, &se) {
		return se.Category == CategoryValidation
	}
	return false
}
