// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(ErrValidation, ErrValidation) {
		t.Error("same error should match")
	}
	if errors.Is(ErrInsufficientFunds, ErrInsufficientPosition) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrInsufficientFunds, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrInsufficientFunds.Code {
		t.Error("code not preserved")
	}
	if !errors.Is(wrapped, ErrInsufficientFunds) {
		t.Error("wrapped error should match base by code")
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(ErrConfigInvalid, "leverage must be >= 1, got %d", 0)
	if !errors.Is(err, ErrConfigInvalid) {
		t.Error("Errorf should keep the base code")
	}
	if err.Error() != "[CONFIG_INVALID] configuration invalid: leverage must be >= 1, got 0" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestAsErrorAndCodeOf(t *testing.T) {
	plain := errors.New("boom")
	if got := AsError(plain, ErrStrategyFailed); got.Code != ErrStrategyFailed.Code || got.Cause != plain {
		t.Errorf("plain error should be wrapped in the base, got %+v", got)
	}

	coded := fmt.Errorf("job 3: %w", Errorf(ErrNoData, "AAPL"))
	if got := AsError(coded, ErrStrategyFailed); got.Code != ErrNoData.Code {
		t.Errorf("expected NO_DATA from the chain, got %s", got.Code)
	}

	if got := CodeOf(coded, "REJECTED"); got != "NO_DATA" {
		t.Errorf("CodeOf = %s", got)
	}
	if got := CodeOf(plain, "REJECTED"); got != "REJECTED" {
		t.Errorf("CodeOf fallback = %s", got)
	}
}
