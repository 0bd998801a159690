// Package errorsx defines the application's error taxonomy.
package errorsx

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeTransport         = "TRANSPORT_ERROR"
	CodeProtocolViolation = "PROTOCOL_VIOLATION"
	CodeGuessRejected     = "GUESS_REJECTED"
	CodeConfigError       = "CONFIG_ERROR"
	CodeStorageError      = "STORAGE_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// AppError represents an application error with a stable code and message.
type AppError struct {
	Code    string
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

// Is checks if the error matches the target by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(code string, err error, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Common error instances, matched by code via errors.Is.
var (
	ErrTransport         = New(CodeTransport, "oracle transport error")
	ErrProtocolViolation = New(CodeProtocolViolation, "protocol invariant violation")
	ErrGuessRejected     = New(CodeGuessRejected, "guess rejected by oracle")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrNotFound          = New(CodeNotFound, "resource not found")
)

// IsTransportError reports whether err is a transport failure.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsProtocolViolation reports whether err is a protocol invariant violation.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}

// IsGuessRejected reports whether err is a rejected-guess failure.
func IsGuessRejected(err error) bool {
	return errors.Is(err, ErrGuessRejected)
}

// GetErrorCode extracts the error code from an error, or CodeNotFound's
// sibling "UNKNOWN_ERROR" if err does not wrap an AppError.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if err == nil {
		return ""
	}
	return "UNKNOWN_ERROR"
}
