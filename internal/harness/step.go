// Package harness defines the object model at the heart of floe: Components
// own Tasks, Tasks own ordered Steps, and Steps declare the inputs, outputs
// and resources that let the setup resolver and the runner order and check
// the work without understanding any of the science inside a step body.
package harness

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/polarlab/floe/internal/config"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/machine"
)

// Resources is a step's resource request. NTasks and CPUsPerTask are the
// preferred values; the Min fields are the floor the step can still run at.
type Resources struct {
	NTasks         int `yaml:"ntasks"`
	MinTasks       int `yaml:"min_tasks"`
	CPUsPerTask    int `yaml:"cpus_per_task"`
	MinCPUsPerTask int `yaml:"min_cpus_per_task"`
	OpenMPThreads  int `yaml:"openmp_threads"`
}

// DefaultResources returns the single-process request every step starts with
func DefaultResources() Resources {
	return Resources{
		NTasks:         1,
		MinTasks:       1,
		CPUsPerTask:    1,
		MinCPUsPerTask: 1,
		OpenMPThreads:  1,
	}
}

// InputRecipe describes how one input file is materialized into a step's
// work directory: a symlink to a work-dir target, a symlink into a database
// tree, a copy, or a download. Exactly one mode may be set.
type InputRecipe struct {
	// Filename is the path of the input relative to the step work directory
	Filename string `yaml:"filename"`
	// Target is a symlink target, relative to the step work directory or absolute
	Target string `yaml:"target,omitempty"`
	// Database is a path inside the configured database root to symlink from
	Database string `yaml:"database,omitempty"`
	// URL is a remote location to download the file from
	URL string `yaml:"url,omitempty"`
	// Copy materializes Target by copying instead of symlinking
	Copy bool `yaml:"copy,omitempty"`
}

// Mode returns a short name for the recipe's materialization mode
func (r InputRecipe) Mode() string {
	switch {
	case r.URL != "":
		return "download"
	case r.Copy:
		return "copy"
	case r.Database != "":
		return "database"
	default:
		return "symlink"
	}
}

func (r InputRecipe) validate() error {
	modes := 0
	if r.Target != "" {
		modes++
	}
	if r.Database != "" {
		modes++
	}
	if r.URL != "" {
		modes++
	}
	if modes != 1 {
		return errors.New(errors.ErrCodeAmbiguousInputMode,
			fmt.Sprintf("input %s must set exactly one of target, database, or url", r.Filename))
	}
	if r.Copy && r.Target == "" {
		return errors.New(errors.ErrCodeAmbiguousInputMode,
			fmt.Sprintf("input %s requests copy without a target", r.Filename))
	}
	return nil
}

// OutputFile is a file a step promises to produce, with the variables that
// must match a baseline bit for bit and the structural properties to check.
type OutputFile struct {
	Filename        string   `yaml:"filename"`
	ValidateVars    []string `yaml:"validate_vars,omitempty"`
	CheckProperties []string `yaml:"check_properties,omitempty"`
}

// StepContext is passed to every step hook. It replaces ambient state: the
// step's merged config and bound work directory travel with the call.
type StepContext struct {
	Step    *Step
	Config  *config.Config
	Logger  *log.Logger
	WorkDir string
	Machine machine.Info
}

// Path returns an absolute path inside the step's work directory
func (sc *StepContext) Path(filename string) string {
	return filepath.Join(sc.WorkDir, filename)
}

// Runner is the contract a concrete step body implements. Run must leave
// every declared output existing on disk; the framework verifies that and
// fails the step otherwise.
type Runner interface {
	Run(ctx context.Context, sc *StepContext) error
}

// SetupHook is an optional step interface invoked during setup, after the
// task config is final. It may add inputs, outputs and config but must not
// perform heavy computation.
type SetupHook interface {
	Setup(sc *StepContext) error
}

// RuntimeSetupHook is an optional step interface invoked just before Run.
// It may update already-materialized artifacts from final resource counts
// or user-edited config, but must not alter resource fields; those belong
// to ConstrainResources alone.
type RuntimeSetupHook interface {
	RuntimeSetup(sc *StepContext) error
}

// ResourceHook is an optional step interface that reads config to adjust
// the step's resource request. The framework always applies the base
// clamping after the hook, so overriding cannot skip it.
type ResourceHook interface {
	ConstrainResources(sc *StepContext) error
}

// Step is the smallest schedulable unit of work
type Step struct {
	// Name is unique within the owning task
	Name string
	// Subdir is the work-directory path relative to the owning task
	// (or to the component for shared steps); defaults to Name
	Subdir string
	// Resources is the step's resource request, finalized by ConstrainResources
	Resources Resources
	// Cached marks the step's outputs as fetched from the cache database
	// instead of computed by Run
	Cached bool
	// Shared marks the step as owned by the component and referenced by
	// several tasks through symlinks
	Shared bool

	body Runner

	inputs  []InputRecipe
	outputs []OutputFile
	deps    []*Step

	// path is the canonical work-directory path, bound by the resolver
	path domain.WorkPath
	// workDir is the absolute work directory, bound by the resolver
	workDir string
	// setUp records that declarations are complete and recipes materialized
	setUp bool
}

// NewStep creates a step around a body implementing Runner and whichever
// optional hooks it needs. Construction is cheap: no I/O happens here.
func NewStep(name string, body Runner) *Step {
	return &Step{
		Name:      name,
		Subdir:    name,
		Resources: DefaultResources(),
		body:      body,
	}
}

// WithSubdir overrides the default subdir (the step name)
func (s *Step) WithSubdir(subdir string) *Step {
	s.Subdir = subdir
	return s
}

// WithResources replaces the initial resource request
func (s *Step) WithResources(res Resources) *Step {
	s.Resources = res
	return s
}

// Body returns the step's pluggable behavior
func (s *Step) Body() Runner {
	return s.body
}

// AddInputFile registers a recipe to materialize an input file. No I/O
// happens at call time; declarations must be complete before the step is
// scheduled.
func (s *Step) AddInputFile(recipe InputRecipe) error {
	if s.setUp {
		return errors.New(errors.ErrCodeStepRunFailed,
			fmt.Sprintf("step %s cannot declare input %s after setup", s.Name, recipe.Filename))
	}
	if err := recipe.validate(); err != nil {
		return err
	}
	s.inputs = append(s.inputs, recipe)
	return nil
}

// AddOutputFile registers a file the step must produce
func (s *Step) AddOutputFile(output OutputFile) error {
	if s.setUp {
		return errors.New(errors.ErrCodeStepRunFailed,
			fmt.Sprintf("step %s cannot declare output %s after setup", s.Name, output.Filename))
	}
	s.outputs = append(s.outputs, output)
	return nil
}

// AddDependency marks another step as required to have completed before
// this one runs, even without a file edge between them. The dependency's
// persisted state snapshot becomes readable by this step at run time.
func (s *Step) AddDependency(dep *Step) {
	s.deps = append(s.deps, dep)
}

// Inputs returns the declared input recipes
func (s *Step) Inputs() []InputRecipe {
	return append([]InputRecipe(nil), s.inputs...)
}

// Outputs returns the declared outputs
func (s *Step) Outputs() []OutputFile {
	return append([]OutputFile(nil), s.outputs...)
}

// Dependencies returns the explicitly declared dependency steps
func (s *Step) Dependencies() []*Step {
	return append([]*Step(nil), s.deps...)
}

// Path returns the canonical work-directory path bound by the resolver
func (s *Step) Path() domain.WorkPath {
	return s.path
}

// WorkDir returns the absolute work directory bound by the resolver
func (s *Step) WorkDir() string {
	return s.workDir
}

// Bind attaches the canonical path and absolute work directory. The setup
// resolver is the only caller.
func (s *Step) Bind(path domain.WorkPath, workDir string) {
	s.path = path
	s.workDir = workDir
}

// MarkSetUp freezes the step's declarations
func (s *Step) MarkSetUp() {
	s.setUp = true
}

// IsSetUp reports whether the step's declarations are frozen
func (s *Step) IsSetUp() bool {
	return s.setUp
}

// ConstrainResources pins the step's final resource request against the
// machine. The body's ResourceHook runs first (reading config overrides);
// the base clamping then always applies: requests above what the machine
// offers fall back toward the Min values and fail fast below them.
func (s *Step) ConstrainResources(sc *StepContext) error {
	if hook, ok := s.body.(ResourceHook); ok {
		if err := hook.ConstrainResources(sc); err != nil {
			return err
		}
	}
	return s.clampResources(sc.Machine)
}

func (s *Step) clampResources(info machine.Info) error {
	res := &s.Resources
	if res.MinTasks <= 0 {
		res.MinTasks = 1
	}
	if res.MinCPUsPerTask <= 0 {
		res.MinCPUsPerTask = 1
	}

	if res.MinTasks > info.AvailableTasks {
		return errors.NewResourceExhaustedError(s.Name, res.MinTasks, info.AvailableTasks, "tasks")
	}
	if res.NTasks > info.AvailableTasks {
		res.NTasks = info.AvailableTasks
	}
	if res.NTasks < res.MinTasks {
		res.NTasks = res.MinTasks
	}

	if res.MinCPUsPerTask > info.CoresPerNode {
		return errors.NewResourceExhaustedError(s.Name, res.MinCPUsPerTask, info.CoresPerNode, "cpus per task")
	}
	if res.CPUsPerTask > info.CoresPerNode {
		res.CPUsPerTask = info.CoresPerNode
	}
	if res.CPUsPerTask < res.MinCPUsPerTask {
		res.CPUsPerTask = res.MinCPUsPerTask
	}

	if res.OpenMPThreads <= 0 {
		res.OpenMPThreads = 1
	}
	return nil
}
