// Package run executes resolved tasks: steps strictly in declared order,
// resources constrained against the machine just before each step, per-step
// state snapshots persisted for dependents, validation only after a clean
// run. Suites continue past failed tasks and report an aggregate.
package run

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
)

// StateFilename is the per-step state snapshot written after each attempt
const StateFilename = "floe_step_state.yaml"

// Step outcomes recorded in state snapshots and results
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
	OutcomeCached  = "cached"
	OutcomeSkipped = "skipped"
)

// StepState is what a step leaves behind for its dependents: the final
// resource counts it ran at and whether it succeeded
type StepState struct {
	RunID      string            `yaml:"run_id"`
	Step       string            `yaml:"step"`
	Path       string            `yaml:"path"`
	Outcome    string            `yaml:"outcome"`
	StartedAt  time.Time         `yaml:"started_at"`
	Duration   string            `yaml:"duration"`
	Resources  harness.Resources `yaml:"resources"`
	Error      string            `yaml:"error,omitempty"`
}

// writeState persists a step's state snapshot into its work directory
func writeState(step *harness.Step, state StepState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode step state", err)
	}
	path := filepath.Join(step.WorkDir(), StateFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write "+path, err)
	}
	return nil
}

// ReadState loads the state snapshot a previous step run left in stepDir.
// Step bodies use this to read the resource counts a dependency ran at.
func ReadState(stepDir string) (*StepState, error) {
	path := filepath.Join(stepDir, StateFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeStepUnknown, "no step state in "+stepDir)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+path, err)
	}
	var state StepState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "yaml", err)
	}
	return &state, nil
}
