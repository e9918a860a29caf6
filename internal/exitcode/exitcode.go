// Package exitcode maps error categories to process exit codes, so CI
// systems can tell a configuration mistake from a genuine regression.
package exitcode

import (
	"os"
	"strings"

	"github.com/polarlab/floe/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates a configuration or dependency-graph problem
	// caught before any step ran
	ConfigError = 3

	// ValidationFailure indicates a step or task ran but its outputs did
	// not match: the regression signal
	ValidationFailure = 4

	// SuiteFailure indicates one or more tasks of a suite failed
	SuiteFailure = 5

	// ResourceError indicates the machine cannot satisfy a step's minimum
	// resource request
	ResourceError = 6

	// Interrupted indicates the run was cancelled by the user
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error category
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code by its category prefix
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var floeErr *errors.FloeError
	if errors.As(err, &floeErr) {
		code := string(floeErr.Code)
		switch {
		case strings.HasPrefix(code, "CONFIG-"):
			return ConfigError
		case strings.HasPrefix(code, "VALID-"):
			return ValidationFailure
		case strings.HasPrefix(code, "SUITE-"):
			return SuiteFailure
		case strings.HasPrefix(code, "RES-"):
			return ResourceError
		case strings.HasPrefix(code, "TASK-"), strings.HasPrefix(code, "STEP-"):
			return ValidationFailure
		}
	}
	return GeneralError
}
