package run

import (
	"context"
	"fmt"
	"time"

	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/setup"
)

// SuiteResult aggregates the task results of one suite run
type SuiteResult struct {
	Name     string
	Tasks    []*TaskResult
	Duration time.Duration
}

// Counts returns how many tasks passed and failed
func (r *SuiteResult) Counts() (passed, failed int) {
	for _, task := range r.Tasks {
		if task.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Passed reports whether every task in the suite validated
func (r *SuiteResult) Passed() bool {
	_, failed := r.Counts()
	return failed == 0
}

// Err returns a suite-level error when any task failed, or nil
func (r *SuiteResult) Err() error {
	passed, failed := r.Counts()
	if failed == 0 {
		return nil
	}
	return errors.New(errors.ErrCodeSuiteFailed,
		fmt.Sprintf("suite %s: %d passed, %d failed", r.Name, passed, failed))
}

// RunSuite executes the selected tasks in order. A failed task never stops
// the suite; every remaining task still runs and the aggregate carries the
// failure.
func RunSuite(ctx context.Context, opts Options, name string, selections []setup.Selection) *SuiteResult {
	logger := opts.logger().With("suite", name)
	start := time.Now()
	result := &SuiteResult{Name: name}

	logger.Info("running suite", "tasks", len(selections))
	for _, selection := range selections {
		taskResult := RunTask(ctx, opts, selection)
		result.Tasks = append(result.Tasks, taskResult)
		if taskResult.Err != nil {
			logger.WithError(taskResult.Err).Warn("task failed, continuing suite",
				"task", taskResult.Path)
		}
	}

	result.Duration = time.Since(start)
	passed, failed := result.Counts()
	logger.Info("suite finished",
		"passed", passed, "failed", failed, "duration", result.Duration.String())
	return result
}
