// Package errors defines the application error taxonomy used for retry
// decisions, logging, and metric tagging.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeStoreUnavailable indicates the database could not be reached or
	// a pooled connection could not be obtained. Fatal at startup, retried
	// with backoff at runtime.
	ErrCodeStoreUnavailable ErrorCode = "store_unavailable"
	// ErrCodeStatement indicates an individual statement failed (constraint
	// violation, connection drop mid-statement). Rolled back and surfaced to
	// the caller.
	ErrCodeStatement ErrorCode = "statement"
	// ErrCodeTaskFailure indicates a task body failed. This is the only
	// category the dispatcher acts on for retry decisions.
	ErrCodeTaskFailure ErrorCode = "task_failure"
	// ErrCodeTimeout indicates the hard execution timeout was exceeded and
	// the task attempt was forcibly aborted.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StoreUnavailable creates a new StoreUnavailable error wrapping cause.
func StoreUnavailable(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeStoreUnavailable, Message: message, Cause: cause}
}

// Statement creates a new Statement error wrapping cause.
func Statement(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeStatement, Message: message, Cause: cause}
}

// TaskFailure creates a new TaskFailure error wrapping cause.
func TaskFailure(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeTaskFailure, Message: message, Cause: cause}
}

// Timeout creates a new Timeout error wrapping cause.
func Timeout(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: message, Cause: cause}
}

// Canceled creates a new Canceled error wrapping cause.
func Canceled(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeCanceled, Message: message, Cause: cause}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Internalf creates a new Internal error with formatted message.
func Internalf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the ErrorCode of err if it is (or wraps) an AppError,
// otherwise ErrCodeInternal. A nil error returns the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
