package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error the engine surfaces to its caller.
//
// Only invalid input (a malformed address, program id, or context key)
// crosses the Analyzer boundary as a hard failure. A spent search budget
// is reported on the PdaMatch instead.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending request field, if any.
	Field string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidInput indicates a malformed request field.
	ErrCodeInvalidInput RuntimeErrorCode = "INVALID_INPUT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewInvalidInput creates a RuntimeError for a malformed request field.
func NewInvalidInput(field string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidInput,
		Message: "malformed request",
		Field:   field,
		Err:     err,
	}
}

// IsInvalidInput returns true if the error is an invalid input error.
// Uses errors.As to handle wrapped errors.
func IsInvalidInput(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidInput
	}
	return false
}
