package harness

import (
	"fmt"

	"github.com/polarlab/floe/internal/config"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/log"
)

// Status tracks a task through one setup and run cycle
type Status int

const (
	// StatusConstructed is the initial state after construction
	StatusConstructed Status = iota
	// StatusConfigured means the Configure hook has run against final config
	StatusConfigured
	// StatusStepsSetUp means every step's recipes are materialized
	StatusStepsSetUp
	// StatusRunning means steps are executing in order
	StatusRunning
	// StatusValidated means all selected steps succeeded and validation passed
	StatusValidated
	// StatusFailed means a step failed or validation found a mismatch
	StatusFailed
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusConstructed:
		return "constructed"
	case StatusConfigured:
		return "configured"
	case StatusStepsSetUp:
		return "steps_set_up"
	case StatusRunning:
		return "running"
	case StatusValidated:
		return "validated"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskContext is passed to the Configure and Validate hooks. Like
// StepContext it replaces ambient state with explicit arguments.
type TaskContext struct {
	Task    *Task
	Config  *config.Config
	Logger  *log.Logger
	WorkDir string
	// Baseline is the corresponding task directory in a baseline work tree,
	// empty when no baseline was supplied
	Baseline string
	// ExecutedSteps names the steps that actually ran this cycle, so
	// Validate can skip comparisons whose inputs were never produced
	ExecutedSteps []string
}

// Executed reports whether the named step ran this cycle
func (tc *TaskContext) Executed(name string) bool {
	for _, step := range tc.ExecutedSteps {
		if step == name {
			return true
		}
	}
	return false
}

// Configurer is the optional task hook run once during setup, after the
// task's own config has been merged. It may set config defaults and rebuild
// config-driven step sets; it must be idempotent.
type Configurer interface {
	Configure(tc *TaskContext) error
}

// Validator is the optional task hook run after all selected steps finish,
// comparing declared variables across output files and against a baseline.
type Validator interface {
	Validate(tc *TaskContext) error
}

// StepSpec names one config-derived step. Configure hooks produce a spec
// list from config and hand it to SyncDerivedSteps, which diffs it against
// the previous list; this keeps rebuilds idempotent.
type StepSpec struct {
	Name   string
	Subdir string
	Params map[string]string
}

func sameSpecs(a, b []StepSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Subdir != b[i].Subdir {
			return false
		}
		if len(a[i].Params) != len(b[i].Params) {
			return false
		}
		for k, v := range a[i].Params {
			if b[i].Params[k] != v {
				return false
			}
		}
	}
	return true
}

// Task is an ordered collection of named steps sharing a config and a
// work-directory subtree
type Task struct {
	// Name identifies the task within its component
	Name string
	// Subdir is the work-directory path relative to the component
	Subdir domain.WorkPath
	// Config is the task's layered configuration, built at setup time
	Config *config.Config
	// ConfigFiles are package default config files merged during setup,
	// after machine and component defaults and before the user config
	ConfigFiles []string

	hooks any

	steps      map[string]*Step
	order      []string
	runDefault map[string]bool
	symlinks   map[string]string

	derivedSpecs []StepSpec

	status  Status
	path    domain.WorkPath
	workDir string
}

// NewTask creates a task. hooks may be nil or implement Configurer and/or
// Validator. Construction must stay cheap: no I/O, no heavy computation.
func NewTask(name string, subdir domain.WorkPath, hooks any) *Task {
	if subdir == "" {
		subdir = domain.WorkPath(name)
	}
	return &Task{
		Name:       name,
		Subdir:     subdir,
		Config:     config.New(),
		hooks:      hooks,
		steps:      make(map[string]*Step),
		runDefault: make(map[string]bool),
		symlinks:   make(map[string]string),
		status:     StatusConstructed,
	}
}

// AddStep registers a step under a unique name. Steps excluded from the
// default run set are still set up so a user can run them by hand. symlink
// requests a visible alias when the step's canonical directory lies outside
// the task's own subtree, the shared-step case.
func (t *Task) AddStep(step *Step, runByDefault bool, symlink string) error {
	if _, exists := t.steps[step.Name]; exists {
		return errors.New(errors.ErrCodeDuplicateRegistered,
			fmt.Sprintf("task %s already has a step named %s", t.Name, step.Name))
	}
	t.steps[step.Name] = step
	t.order = append(t.order, step.Name)
	t.runDefault[step.Name] = runByDefault
	if symlink != "" {
		t.symlinks[step.Name] = symlink
	}
	return nil
}

// RemoveStep drops a step registration
func (t *Task) RemoveStep(name string) error {
	if _, exists := t.steps[name]; !exists {
		return errors.New(errors.ErrCodeStepUnknown,
			fmt.Sprintf("task %s has no step named %s", t.Name, name))
	}
	delete(t.steps, name)
	delete(t.runDefault, name)
	delete(t.symlinks, name)
	for i, existing := range t.order {
		if existing == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// SyncDerivedSteps rebuilds the config-driven subset of the task's steps.
// specs is the freshly derived list; if it matches the previous call's list
// the step set is left untouched, which makes Configure idempotent. On a
// change, steps from the previous list are removed and the new list is
// built in order.
func (t *Task) SyncDerivedSteps(specs []StepSpec, build func(StepSpec) (*Step, error)) error {
	if sameSpecs(t.derivedSpecs, specs) {
		return nil
	}
	for _, old := range t.derivedSpecs {
		if _, exists := t.steps[old.Name]; exists {
			if err := t.RemoveStep(old.Name); err != nil {
				return err
			}
		}
	}
	for _, spec := range specs {
		step, err := build(spec)
		if err != nil {
			return err
		}
		if spec.Subdir != "" {
			step.Subdir = spec.Subdir
		}
		if err := t.AddStep(step, true, ""); err != nil {
			return err
		}
	}
	t.derivedSpecs = append([]StepSpec(nil), specs...)
	return nil
}

// Steps returns the task's steps in the order they were added
func (t *Task) Steps() []*Step {
	out := make([]*Step, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.steps[name])
	}
	return out
}

// Step returns the named step
func (t *Task) Step(name string) (*Step, bool) {
	step, ok := t.steps[name]
	return step, ok
}

// StepNames returns the step names in add order
func (t *Task) StepNames() []string {
	return append([]string(nil), t.order...)
}

// StepsToRun returns, in add order, the names of steps in the default run set
func (t *Task) StepsToRun() []string {
	out := []string{}
	for _, name := range t.order {
		if t.runDefault[name] {
			out = append(out, name)
		}
	}
	return out
}

// Symlink returns the requested alias location for a step, if any
func (t *Task) Symlink(stepName string) (string, bool) {
	link, ok := t.symlinks[stepName]
	return link, ok
}

// Configure runs the Configurer hook once against the task's final config
func (t *Task) Configure(tc *TaskContext) error {
	if hook, ok := t.hooks.(Configurer); ok {
		if err := hook.Configure(tc); err != nil {
			return err
		}
	}
	t.status = StatusConfigured
	return nil
}

// Validate runs the Validator hook, comparing outputs across steps and
// against a baseline when one is bound to the context
func (t *Task) Validate(tc *TaskContext) error {
	if hook, ok := t.hooks.(Validator); ok {
		return hook.Validate(tc)
	}
	return nil
}

// Status returns the task's current lifecycle state
func (t *Task) Status() Status {
	return t.status
}

// SetStatus moves the task to a new lifecycle state
func (t *Task) SetStatus(status Status) {
	t.status = status
}

// Path returns the canonical work-directory path bound by the component
func (t *Task) Path() domain.WorkPath {
	return t.path
}

// WorkDir returns the absolute work directory bound by the resolver
func (t *Task) WorkDir() string {
	return t.workDir
}

// Bind attaches the canonical path, and later the absolute work directory
func (t *Task) Bind(path domain.WorkPath, workDir string) {
	t.path = path
	t.workDir = workDir
}
