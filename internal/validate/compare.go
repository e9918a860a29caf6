// Package validate compares declared variables between step outputs and
// against baseline work trees. A mismatch is a task-level validation
// failure, distinct from a step execution failure.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/polarlab/floe/internal/dataset"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/log"
)

// CheckResult records the outcome of one variable comparison
type CheckResult struct {
	Variable string
	FileA    string
	FileB    string
	Passed   bool
	Skipped  bool
	Message  string
	Duration time.Duration
}

// Report aggregates the checks of one Validate call
type Report struct {
	Checks  []CheckResult
	Passed  int
	Failed  int
	Skipped int
}

// AllPassed reports whether no comparison failed
func (r *Report) AllPassed() bool {
	return r.Failed == 0
}

func (r *Report) record(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch {
	case check.Skipped:
		r.Skipped++
	case check.Passed:
		r.Passed++
	default:
		r.Failed++
	}
}

// Err returns a validation error describing the first failed check, or nil
func (r *Report) Err() error {
	for _, check := range r.Checks {
		if !check.Passed && !check.Skipped {
			return errors.NewValidationMismatchError(check.Variable, check.FileA, check.FileB)
		}
	}
	return nil
}

// CompareVariables checks that the named variables are bit-identical
// between two dataset files, appending one check per variable to report
func CompareVariables(report *Report, fileA, fileB string, variables []string, logger *log.Logger) {
	dsA, errA := dataset.Read(fileA)
	dsB, errB := dataset.Read(fileB)

	for _, variable := range variables {
		start := time.Now()
		check := CheckResult{Variable: variable, FileA: fileA, FileB: fileB}

		switch {
		case errA != nil:
			check.Message = fmt.Sprintf("cannot read %s: %v", fileA, errA)
		case errB != nil:
			check.Message = fmt.Sprintf("cannot read %s: %v", fileB, errB)
		default:
			digestA, err := dsA.Digest(variable)
			if err != nil {
				check.Message = fmt.Sprintf("%s missing in %s", variable, fileA)
				break
			}
			digestB, err := dsB.Digest(variable)
			if err != nil {
				check.Message = fmt.Sprintf("%s missing in %s", variable, fileB)
				break
			}
			if digestA == digestB {
				check.Passed = true
				check.Message = "bit-identical"
			} else {
				check.Message = "values differ"
			}
		}

		check.Duration = time.Since(start)
		if logger != nil {
			if check.Passed {
				logger.Debug("variable comparison passed", "variable", variable)
			} else {
				logger.Warn("variable comparison failed",
					"variable", variable, "file_a", fileA, "file_b", fileB, "reason", check.Message)
			}
		}
		report.record(check)
	}
}

// CompareSteps compares variables between the same output filename in two
// step directories of one task work directory. Steps that were not executed
// this cycle are skipped rather than failed, unless strict is set.
func CompareSteps(report *Report, taskDir, stepA, stepB, filename string,
	variables []string, executed func(string) bool, strict bool, logger *log.Logger) {

	for _, step := range []string{stepA, stepB} {
		if executed != nil && !executed(step) {
			if strict {
				report.record(CheckResult{
					Variable: filename,
					FileA:    stepA, FileB: stepB,
					Message: fmt.Sprintf("step %s did not run", step),
				})
			} else {
				report.record(CheckResult{
					Variable: filename,
					FileA:    stepA, FileB: stepB,
					Skipped: true,
					Message: fmt.Sprintf("step %s not in steps to run", step),
				})
			}
			return
		}
	}

	CompareVariables(report,
		filepath.Join(taskDir, stepA, filename),
		filepath.Join(taskDir, stepB, filename),
		variables, logger)
}

// CompareWithBaseline compares a step output against the same path in a
// baseline work tree. When the baseline tree does not carry the file, the
// comparison is skipped: baselines are optional by contract.
func CompareWithBaseline(report *Report, taskDir, baselineDir, step, filename string,
	variables []string, logger *log.Logger) {

	if baselineDir == "" {
		report.record(CheckResult{
			Variable: filename,
			Skipped:  true,
			Message:  "no baseline supplied",
		})
		return
	}

	baselineFile := filepath.Join(baselineDir, step, filename)
	if _, err := os.Stat(baselineFile); err != nil {
		report.record(CheckResult{
			Variable: filename,
			FileA:    baselineFile,
			Skipped:  true,
			Message:  "baseline file absent",
		})
		return
	}

	CompareVariables(report,
		filepath.Join(taskDir, step, filename),
		baselineFile,
		variables, logger)
}
