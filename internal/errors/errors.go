package errors

import "fmt"

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUnauthorized indicates a missing, expired or failed session.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
	// ErrCodeForbidden indicates the caller lacks a required role.
	ErrCodeForbidden ErrorCode = "forbidden"
	// ErrCodeUnavailable indicates an upstream dependency (identity provider, store) failed.
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
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
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Kind is the session error kind surfaced to clients (optional)
	Kind string
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

// Unauthorized creates a new Unauthorized error tagged with a session error kind.
func Unauthorized(message, kind string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
		Kind:    kind,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
