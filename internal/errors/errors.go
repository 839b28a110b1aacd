// Package errors provides the typed error kinds used across MiniOS.
// Every failure that reaches the dispatcher carries one of these codes so
// the shell can decide how to render it.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents standardized error categories
type ErrorCode string

const (
	// ErrCodeValidation covers bad arguments, duplicate registrations and
	// malformed pid tokens.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeNotFound covers missing files, scripts and process ids.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeIO covers failed reads and writes of persistent state.
	ErrCodeIO ErrorCode = "IO"
	// ErrCodeAuth covers rejected logins.
	ErrCodeAuth ErrorCode = "AUTH"
	// ErrCodeUnknownCommand is returned for names missing from the command table.
	ErrCodeUnknownCommand ErrorCode = "UNKNOWN_COMMAND"
	// ErrCodeCredentialsCorrupted is a warning: the credential file could
	// not be parsed and was treated as empty.
	ErrCodeCredentialsCorrupted ErrorCode = "CREDENTIALS_CORRUPTED"
	// ErrCodeUsage is returned when a command gets the wrong number of
	// arguments.
	ErrCodeUsage ErrorCode = "USAGE"

	ErrCodeInternal ErrorCode = "INTERNAL"
)

// MiniError is the standardized error type for the application
type MiniError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface
func (e *MiniError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause
func (e *MiniError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *MiniError) WithContext(key string, value any) *MiniError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new MiniError
func New(code ErrorCode, message string) *MiniError {
	return &MiniError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new MiniError with a formatted message
func Newf(code ErrorCode, format string, args ...any) *MiniError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context
func Wrap(cause error, code ErrorCode, message string) *MiniError {
	return &MiniError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Is checks if the error matches the given error code
func Is(err error, code ErrorCode) bool {
	var miniErr *MiniError
	if errors.As(err, &miniErr) {
		return miniErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var miniErr *MiniError
	if errors.As(err, &miniErr) {
		return miniErr.Code
	}
	return ErrCodeInternal
}

// UserMessage returns the text shown on the console for err, without the
// code prefix that Error adds.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var miniErr *MiniError
	if !errors.As(err, &miniErr) {
		return err.Error()
	}
	switch {
	case miniErr.Cause != nil && miniErr.Message == "":
		return miniErr.Cause.Error()
	case miniErr.Cause != nil:
		return miniErr.Message + ": " + miniErr.Cause.Error()
	default:
		return miniErr.Message
	}
}

// --- Convenience constructors for common errors ---

// Validation creates a validation error
func Validation(message string) *MiniError {
	return New(ErrCodeValidation, message)
}

// NotFound creates a not found error
func NotFound(message string) *MiniError {
	return New(ErrCodeNotFound, message)
}

// IO wraps a failed read or write of path
func IO(cause error, path string) *MiniError {
	return Wrap(cause, ErrCodeIO, fmt.Sprintf("failed to access '%s'", path)).
		WithContext("path", path)
}

// Usage reports a command invoked with the wrong number of arguments
func Usage(usage string) *MiniError {
	return Newf(ErrCodeUsage, "Usage: %s", usage)
}

// Auth creates an authentication error
func Auth(message string) *MiniError {
	return New(ErrCodeAuth, message)
}

// UnknownCommand creates an unknown command error
func UnknownCommand(name string) *MiniError {
	return New(ErrCodeUnknownCommand, fmt.Sprintf("Unknown command: %s. Type 'help' for a list of commands.", name)).
		WithContext("command", name)
}

// CredentialsCorrupted wraps the parse failure of a credential file
func CredentialsCorrupted(cause error, path string) *MiniError {
	return Wrap(cause, ErrCodeCredentialsCorrupted, fmt.Sprintf("credential file '%s' is corrupted; starting with no users", path)).
		WithContext("path", path)
}

// Internal wraps an unexpected failure, including recovered panics
func Internal(cause error, details string) *MiniError {
	return Wrap(cause, ErrCodeInternal, details)
}
