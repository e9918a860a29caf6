package setup

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
)

// SnapshotFilename is the name of the setup snapshot written into each
// task work directory
const SnapshotFilename = "floe_setup.yaml"

// StepSnapshot is the persisted record of one bound step
type StepSnapshot struct {
	Name         string                `yaml:"name"`
	Path         string                `yaml:"path"`
	WorkDir      string                `yaml:"work_dir"`
	Cached       bool                  `yaml:"cached,omitempty"`
	Shared       bool                  `yaml:"shared,omitempty"`
	RunByDefault bool                  `yaml:"run_by_default"`
	Resources    harness.Resources     `yaml:"resources"`
	Inputs       []harness.InputRecipe `yaml:"inputs,omitempty"`
	Outputs      []harness.OutputFile  `yaml:"outputs,omitempty"`
	Dependencies []string              `yaml:"dependencies,omitempty"`
}

// TaskSnapshot is the persisted record of one resolved task: enough for the
// runner to execute the task in a fresh process, matched against the
// in-process registry by canonical path.
type TaskSnapshot struct {
	SetupID    string         `yaml:"setup_id"`
	CreatedAt  time.Time      `yaml:"created_at"`
	Name       string         `yaml:"name"`
	Path       string         `yaml:"path"`
	WorkDir    string         `yaml:"work_dir"`
	Baseline   string         `yaml:"baseline,omitempty"`
	ConfigFile string         `yaml:"config_file"`
	StepsToRun []string       `yaml:"steps_to_run"`
	Steps      []StepSnapshot `yaml:"steps"`
}

func buildSnapshot(setupID string, task *harness.Task, baseline, configFile string) *TaskSnapshot {
	snapshot := &TaskSnapshot{
		SetupID:    setupID,
		CreatedAt:  time.Now().UTC(),
		Name:       task.Name,
		Path:       task.Path().String(),
		WorkDir:    task.WorkDir(),
		Baseline:   baseline,
		ConfigFile: configFile,
		StepsToRun: task.StepsToRun(),
	}

	for _, step := range task.Steps() {
		var deps []string
		for _, dep := range step.Dependencies() {
			deps = append(deps, dep.Name)
		}
		runByDefault := false
		for _, name := range snapshot.StepsToRun {
			if name == step.Name {
				runByDefault = true
			}
		}
		snapshot.Steps = append(snapshot.Steps, StepSnapshot{
			Name:         step.Name,
			Path:         step.Path().String(),
			WorkDir:      step.WorkDir(),
			Cached:       step.Cached,
			Shared:       step.Shared,
			RunByDefault: runByDefault,
			Resources:    step.Resources,
			Inputs:       step.Inputs(),
			Outputs:      step.Outputs(),
			Dependencies: deps,
		})
	}
	return snapshot
}

// Write persists the snapshot into the task work directory
func (s *TaskSnapshot) Write() error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode setup snapshot", err)
	}
	path := filepath.Join(s.WorkDir, SnapshotFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write "+path, err)
	}
	return nil
}

// LoadSnapshot reads the setup snapshot from a task work directory
func LoadSnapshot(taskDir string) (*TaskSnapshot, error) {
	path := filepath.Join(taskDir, SnapshotFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeTaskNotConfigured,
				"no setup snapshot in "+taskDir).
				WithSuggestion("Run 'floe setup' before running the task")
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+path, err)
	}

	var snapshot TaskSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "yaml", err)
	}
	return &snapshot, nil
}
