// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// AsError returns the first *Error in err's chain, or wraps err in base when
// the chain carries none.
func AsError(err error, base *Error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return WrapError(base, err)
}

// CodeOf returns the code of the first *Error in err's chain, or fallback.
func CodeOf(err error, fallback string) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}

// Predefined errors
var (
	// Input errors
	ErrValidation = &Error{Code: "VALIDATION", Message: "invalid input series"}
	ErrNoData     = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrNotFound   = &Error{Code: "NOT_FOUND", Message: "not found"}

	// Execution errors, recovered per intent
	ErrInsufficientFunds    = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds"}
	ErrInsufficientPosition = &Error{Code: "INSUFFICIENT_POSITION", Message: "insufficient position"}

	// Strategy errors
	ErrStrategyFailed  = &Error{Code: "STRATEGY_FAILED", Message: "strategy decision failed"}
	ErrUnknownStrategy = &Error{Code: "UNKNOWN_STRATEGY", Message: "strategy not registered"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
