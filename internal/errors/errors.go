// Package errors defines structured error types for the view engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode defines specific error types returned by the engine.
type ErrorCode string

const (
	// ErrRecordNotFound is returned when a view, field, row or group does not exist.
	ErrRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	// ErrInternal is returned on a policy violation such as deleting the primary field.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	// ErrTimeout is returned when an operation does not complete in time.
	ErrTimeout ErrorCode = "TIMEOUT"
	// ErrCancelled is returned when a pipeline was canceled before completion.
	ErrCancelled ErrorCode = "CANCELLED"
	// ErrInvalidData is returned when a changeset or payload cannot be decoded.
	ErrInvalidData ErrorCode = "INVALID_DATA"
	// ErrStorageError is returned when the storage layer fails.
	ErrStorageError ErrorCode = "STORAGE_ERROR"
)

// Error is a concrete error type with a code and optional details.
type Error struct {
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{code: code, message: message}
}

// WithDetail adds a single detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *Error) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *Error) Unwrap() error {
	return e.wrappedErr
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code && t.message == ""
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return ""
}

// Sentinel values usable with errors.Is; they carry only a code.
var (
	NotFound  = &Error{code: ErrRecordNotFound}
	Canceled  = &Error{code: ErrCancelled}
	TimedOut  = &Error{code: ErrTimeout}
	Violation = &Error{code: ErrInternal}
)

// Unchanged is returned by a document write that turned out to change
// nothing. The write succeeds without marking the document modified.
var Unchanged = stderrors.New("unchanged")

// RecordNotFound creates an error for a missing record of the given kind.
func RecordNotFound(kind, id string) *Error {
	return NewError(ErrRecordNotFound, fmt.Sprintf("%s %q not found", kind, id)).WithDetail(kind, id)
}

// Internal creates an error for an operation that breaks a document invariant.
func Internal(message string) *Error {
	return NewError(ErrInternal, message)
}

// Timeout creates a timeout error for the named operation.
func Timeout(op string) *Error {
	return NewError(ErrTimeout, op+" timed out")
}

// Cancelled creates a cancellation error for the named operation.
func Cancelled(op string) *Error {
	return NewError(ErrCancelled, op+" was canceled")
}

// InvalidData creates an error for a malformed payload.
func InvalidData(message string) *Error {
	return NewError(ErrInvalidData, message)
}

// Storage wraps a storage layer failure.
func Storage(op string, err error) *Error {
	return NewError(ErrStorageError, op).Wrap(err)
}
