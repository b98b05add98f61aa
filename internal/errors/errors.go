// Package errors provides error code definitions for the fitsync engine.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to the UI layer.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local store errors
	ErrStore            ErrorCode = "STORE_ERROR"
	ErrStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrConstraint       ErrorCode = "CONSTRAINT_VIOLATION"

	// Sync errors
	ErrSyncFailed         ErrorCode = "SYNC_FAILED"
	ErrSyncConflict       ErrorCode = "SYNC_CONFLICT"
	ErrSyncOffline        ErrorCode = "SYNC_OFFLINE"
	ErrSyncTimeout        ErrorCode = "SYNC_TIMEOUT"
	ErrSyncRejected       ErrorCode = "SYNC_REJECTED"
	ErrSyncRetryExhausted ErrorCode = "SYNC_RETRY_EXHAUSTED"

	// Draft errors
	ErrDraftExpired  ErrorCode = "DRAFT_EXPIRED"
	ErrDraftNotFound ErrorCode = "DRAFT_NOT_FOUND"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// Code extracts the code from an error, or ErrInternal if it has none.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
