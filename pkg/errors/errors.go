// Package errors provides structured error types for stylewct.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP server and the library
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes fall into three families that mirror how a failure is handled:
//   - INVALID_*, CHANNEL_MISMATCH, NON_FINITE: precondition violations. The
//     current content/style pair fails and is never retried.
//   - ENCODER_FAILURE, DECODER_FAILURE: collaborator failures, propagated
//     with the original cause attached.
//   - CACHE, TIMEOUT, INTERNAL_ERROR: infrastructure problems.
//
// Numerical degeneracy (near-singular covariance) has no code: it is
// recovered inside the statistics engine and never surfaces.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeChannelMismatch, "content has %d channels, style has %d", c, s)
//	if errors.Is(err, errors.ErrCodeChannelMismatch) {
//	    // Handle precondition failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeDecoder, origErr, "decode at %s", level)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Precondition violations
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidShape    Code = "INVALID_SHAPE"
	ErrCodeChannelMismatch Code = "CHANNEL_MISMATCH"
	ErrCodeNonFinite       Code = "NON_FINITE"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"
	ErrCodeInvalidLevel    Code = "INVALID_LEVEL"
	ErrCodeInvalidWeight   Code = "INVALID_WEIGHT"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Collaborator failures
	ErrCodeEncoder Code = "ENCODER_FAILURE"
	ErrCodeDecoder Code = "DECODER_FAILURE"

	// Infrastructure errors
	ErrCodeCache       Code = "CACHE"
	ErrCodeStore       Code = "STORE"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsPrecondition reports whether err is a precondition violation: a
// structurally bad input for which retrying cannot help.
func IsPrecondition(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidShape, ErrCodeChannelMismatch,
		ErrCodeNonFinite, ErrCodeInvalidConfig, ErrCodeInvalidLevel,
		ErrCodeInvalidWeight, ErrCodeInvalidPath:
		return true
	}
	return false
}
