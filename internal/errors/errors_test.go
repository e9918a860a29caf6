package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeOptionNotFound, "config option not found: [ocean] resolution")

	msg := err.Error()
	if !strings.Contains(msg, "[CONFIG-002]") {
		t.Errorf("Error() = %q, want error code prefix", msg)
	}
	if !strings.Contains(msg, "config option not found") {
		t.Errorf("Error() = %q, want message", msg)
	}
}

func TestErrorWithSuggestions(t *testing.T) {
	err := New(ErrCodeStepOutputMissing, "missing output").
		WithSuggestion("first suggestion").
		WithSuggestion("second suggestion")

	msg := err.Error()
	if !strings.Contains(msg, "Suggestions:") {
		t.Errorf("Error() = %q, want suggestions block", msg)
	}
	if !strings.Contains(msg, "first suggestion") || !strings.Contains(msg, "second suggestion") {
		t.Errorf("Error() = %q, want both suggestions", msg)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := Wrap(ErrCodeFileReadFailed, "failed to read state file", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the wrapped cause")
	}

	var floeErr *FloeError
	if !errors.As(err, &floeErr) {
		t.Fatal("errors.As() should match *FloeError")
	}
	if floeErr.Code != ErrCodeFileReadFailed {
		t.Errorf("Code = %s, want %s", floeErr.Code, ErrCodeFileReadFailed)
	}
}

func TestHasCode(t *testing.T) {
	err := NewPathCollisionError("ocean/baroclinic", "taskA", "taskB")
	if !HasCode(err, ErrCodePathCollision) {
		t.Error("HasCode() should report the collision code")
	}
	if HasCode(err, ErrCodeDependencyCycle) {
		t.Error("HasCode() should not match a different code")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodePathCollision) {
		t.Error("HasCode() should reject non-FloeError values")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *FloeError
		code ErrorCode
	}{
		{"config not found", NewConfigNotFoundError("ocean.cfg"), ErrCodeConfigNotFound},
		{"option not found", NewOptionNotFoundError("ocean", "resolution"), ErrCodeOptionNotFound},
		{"bad interpolation", NewBadInterpolationError("paths", "mesh", "${missing:key}"), ErrCodeBadInterpolation},
		{"cycle", NewDependencyCycleError([]string{"a", "b", "a"}), ErrCodeDependencyCycle},
		{"unsatisfied input", NewUnsatisfiedInputError("forward", "init.nc"), ErrCodeUnsatisfiedInput},
		{"output missing", NewStepOutputMissingError("init", "state.nc"), ErrCodeStepOutputMissing},
		{"input missing", NewStepInputMissingError("forward", "state.nc"), ErrCodeStepInputMissing},
		{"resources", NewResourceExhaustedError("forward", 36, 8, "tasks"), ErrCodeResourceExhausted},
		{"mismatch", NewValidationMismatchError("temperature", "a.flds", "b.flds"), ErrCodeValidationMismatch},
		{"cache", NewCacheEntryMissingError("ocean/global/init/state.nc"), ErrCodeCacheEntryMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
			if len(tt.err.Suggestions) == 0 {
				t.Error("constructor should attach at least one suggestion")
			}
		})
	}
}
