package exitcode

import (
	"fmt"
	"testing"

	"github.com/polarlab/floe/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, Success},
		{"plain error", fmt.Errorf("boom"), GeneralError},
		{"config error", errors.New(errors.ErrCodeOptionNotFound, "missing option"), ConfigError},
		{"cycle", errors.NewDependencyCycleError([]string{"a", "b", "a"}), ConfigError},
		{"validation mismatch", errors.NewValidationMismatchError("temperature", "a", "b"), ValidationFailure},
		{"step failure", errors.New(errors.ErrCodeStepRunFailed, "solver diverged"), ValidationFailure},
		{"suite failure", errors.New(errors.ErrCodeSuiteFailed, "1 failed"), SuiteFailure},
		{"resource exhausted", errors.NewResourceExhaustedError("forward", 36, 8, "tasks"), ResourceError},
		{"wrapped floe error", fmt.Errorf("context: %w",
			errors.New(errors.ErrCodeSuiteFailed, "2 failed")), SuiteFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.want {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
