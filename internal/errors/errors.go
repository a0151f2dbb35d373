// Package errors defines the coded error taxonomy shared by the loader, the
// color scale, the session gate and both rendering surfaces.
//
// Every failure that crosses a package boundary carries a Code so callers can
// decide how to surface it without string matching:
//
//   - AUTH: bad credentials; the only recoverable path (re-prompt)
//   - DECRYPTION, PARSE, PROJECTION: dataset load failures; fatal for the session
//   - SELECTION_OUT_OF_RANGE: contract violation from a rendering surface
//   - INVALID_INPUT, CONFIG, EXPORT: everything else worth naming
//
// Usage:
//
//	err := errors.Wrap(errors.ErrCodeParse, cause, "read shapefile")
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // abort rendering
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	ErrCodeAuth                Code = "AUTH"
	ErrCodeDecryption          Code = "DECRYPTION"
	ErrCodeParse               Code = "PARSE"
	ErrCodeProjection          Code = "PROJECTION"
	ErrCodeSelectionOutOfRange Code = "SELECTION_OUT_OF_RANGE"
	ErrCodeInvalidInput        Code = "INVALID_INPUT"
	ErrCodeConfig              Code = "CONFIG"
	ErrCodeExport              Code = "EXPORT"
	ErrCodeSessionNotFound     Code = "SESSION_NOT_FOUND"
	ErrCodeInternal            Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
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

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode returns the outermost code in err's chain, or "" when there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err must abort rendering for the whole session.
// Only authentication failures are retryable by the user.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !Is(err, ErrCodeAuth)
}

// SelectionOutOfRangeError is raised (as a panic value) when a rendering
// surface reports a row index outside the dataset it was given.
type SelectionOutOfRangeError struct {
	Index int
	Len   int
}

func (e *SelectionOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: row %d outside dataset of %d records", ErrCodeSelectionOutOfRange, e.Index, e.Len)
}
