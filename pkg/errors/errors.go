// Package errors provides structured error types for lanecap.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the optimizer, CLI and API
//   - Machine-readable error codes for programmatic handling
//   - Identification of the failing native operation for platform faults
//
// # Error Codes
//
//   - CONFIGURATION_ERROR: invalid scheduler configuration (e.g. zero lanes)
//   - PLATFORM_ERROR: a device call failed; [Error.Op] names the call
//   - INVALID_*: input validation failures
//   - NOT_FOUND, INTERNAL_ERROR: everything else
//
// Every code is fatal to the call that produced it. Nothing is retried.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfiguration, "number of lanes must be at least one")
//	if errors.Is(err, errors.ErrCodeConfiguration) {
//	    // reject the request
//	}
//
//	// Wrap a device failure
//	err := errors.Platform(errors.OpRecordFence, cause)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Scheduling errors
	ErrCodeConfiguration Code = "CONFIGURATION_ERROR"
	ErrCodePlatform      Code = "PLATFORM_ERROR"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidGraph  Code = "INVALID_GRAPH"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Op names a native device operation that can fail.
type Op string

// Device operations reported by PLATFORM_ERROR.
const (
	OpAcquireLane  Op = "acquire_lane"
	OpReleaseLane  Op = "release_lane"
	OpAcquireFence Op = "acquire_fence"
	OpReleaseFence Op = "release_fence"
	OpBeginCapture Op = "begin_capture"
	OpEndCapture   Op = "end_capture"
	OpRecordFence  Op = "record_fence"
	OpWaitFence    Op = "wait_fence"
	OpWork         Op = "work"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Op      Op     // Failing device operation (PLATFORM_ERROR only)
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := string(e.Code)
	if e.Op != "" {
		prefix += "(" + string(e.Op) + ")"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
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

// Platform wraps a failed device call. The message is derived from op.
func Platform(op Op, cause error) *Error {
	return &Error{
		Code:    ErrCodePlatform,
		Op:      op,
		Message: "failed to " + opVerb(op),
		Cause:   cause,
	}
}

func opVerb(op Op) string {
	switch op {
	case OpAcquireLane:
		return "acquire lane"
	case OpReleaseLane:
		return "release lane"
	case OpAcquireFence:
		return "acquire fence"
	case OpReleaseFence:
		return "release fence"
	case OpBeginCapture:
		return "turn lane into thread-local capture mode"
	case OpEndCapture:
		return "end capture"
	case OpRecordFence:
		return "record fence"
	case OpWaitFence:
		return "wait on fence"
	case OpWork:
		return "enqueue work"
	}
	return string(op)
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

// GetOp extracts the failing device operation from a PLATFORM_ERROR.
// Returns empty string for any other error.
func GetOp(err error) Op {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
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
