// Package errs provides the classified error type shared by the WP Starter
// packages. Fatal errors abort the running command with a non-zero status;
// recoverable errors are logged and the caller falls back to a default.
package errs

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for abort-or-continue logic.
type Class string

const (
	// ClassFatal indicates an error that must terminate the current command.
	// Examples: missing PHP executable, unreadable env file, checksum mismatch.
	ClassFatal Class = "fatal"

	// ClassRecoverable indicates an error that is logged while the caller
	// falls back to a documented default.
	// Examples: an installed package below the minimum version.
	ClassRecoverable Class = "recoverable"
)

// Error represents a classified error with context.
type Error struct {
	// Class is the error classification.
	Class Class `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Subject is the thing the error is about (a step name, a tool, a file).
	Subject string `json:"subject,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Subject != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Subject)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Class, msg, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Class, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewFatal creates a new fatal error.
func NewFatal(message string, err error) *Error {
	return &Error{
		Class:   ClassFatal,
		Message: message,
		Err:     err,
	}
}

// NewRecoverable creates a new recoverable error.
func NewRecoverable(message string, err error) *Error {
	return &Error{
		Class:   ClassRecoverable,
		Message: message,
		Err:     err,
	}
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithSubject adds subject context to an error.
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// IsFatal returns true if the error is classified as fatal.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassFatal
	}
	return false
}

// IsRecoverable returns true if the error is classified as recoverable.
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassRecoverable
	}
	return false
}

// CodeOf returns the code of the first classified error in the chain.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Common error codes.
const (
	CodeEnvFile          = "ENV_FILE"
	CodeEnvCache         = "ENV_CACHE"
	CodePHPNotFound      = "PHP_NOT_FOUND"
	CodeDownloadDisabled = "DOWNLOAD_DISABLED"
	CodeDownloadFailed   = "DOWNLOAD_FAILED"
	CodeChecksum         = "CHECKSUM_MISMATCH"
	CodeVersionTooLow    = "VERSION_TOO_LOW"
	CodeConfig           = "CONFIG"
	CodeStepFailed       = "STEP_FAILED"
)
