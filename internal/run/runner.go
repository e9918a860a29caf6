package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/polarlab/floe/internal/config"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/machine"
	"github.com/polarlab/floe/internal/setup"
)

// Options configures one run
type Options struct {
	// WorkDir is the root of the work tree written by setup
	WorkDir string
	// Steps, when non-empty, is the exact set of steps to run and takes
	// precedence over the persisted steps_to_run
	Steps []string
	// SkipSteps removes steps from the persisted steps_to_run; ignored when
	// Steps is given
	SkipSteps []string

	Logger *log.Logger
}

func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// StepResult records one step attempt
type StepResult struct {
	Name     string
	Outcome  string
	Duration time.Duration
	Err      error
}

// TaskResult records one task run
type TaskResult struct {
	Path   string
	Status harness.Status
	Steps  []StepResult
	Err    error
}

// Passed reports whether the task ran and validated cleanly
func (r *TaskResult) Passed() bool {
	return r.Status == harness.StatusValidated
}

// RunTask executes one resolved task. The setup snapshot supplies the work
// directory, config file, baseline and default step set; the in-process
// selection supplies the step bodies, matched by canonical path. Configure
// is replayed against the persisted config, which is safe because the hook
// is idempotent by contract.
func RunTask(ctx context.Context, opts Options, selection setup.Selection) *TaskResult {
	task := selection.Task
	result := &TaskResult{Path: task.Path().String(), Status: harness.StatusFailed}
	logger := opts.logger().With("task", task.Path().String())

	taskDir := filepath.Join(opts.WorkDir, task.Path().String())
	snapshot, err := setup.LoadSnapshot(taskDir)
	if err != nil {
		result.Err = err
		return result
	}

	cfg := config.New()
	if err := cfg.AddFromFile(snapshot.ConfigFile); err != nil {
		result.Err = err
		return result
	}
	task.Config = cfg

	tc := &harness.TaskContext{
		Task:     task,
		Config:   cfg,
		Logger:   logger,
		WorkDir:  taskDir,
		Baseline: snapshot.Baseline,
	}
	if err := task.Configure(tc); err != nil {
		result.Err = errors.Wrap(errors.ErrCodeTaskFailed,
			"configure failed for task "+task.Path().String(), err)
		return result
	}
	setup.BindTask(opts.WorkDir, task)
	markCachedSteps(task, snapshot)

	selected, err := selectSteps(task, snapshot, opts)
	if err != nil {
		result.Err = err
		return result
	}

	info := machine.Discover(cfg)
	runID := uuid.NewString()
	task.SetStatus(harness.StatusRunning)
	logger.Info("running task", "run_id", runID, "steps", selected)

	var executed []string
	var failure error
	for _, name := range selected {
		step, _ := task.Step(name)
		stepResult := runStep(ctx, step, cfg, info, runID, logger)
		result.Steps = append(result.Steps, stepResult)
		if stepResult.Err != nil {
			failure = stepResult.Err
			break
		}
		executed = append(executed, name)
	}

	if failure != nil {
		// Remaining selected steps are skipped, the task fails
		for _, name := range selected[len(result.Steps):] {
			result.Steps = append(result.Steps, StepResult{Name: name, Outcome: OutcomeSkipped})
		}
		task.SetStatus(harness.StatusFailed)
		result.Err = errors.Wrap(errors.ErrCodeTaskFailed,
			"task "+task.Path().String()+" failed", failure)
		logger.WithError(failure).Error("task failed")
		return result
	}

	tc.ExecutedSteps = executed
	if err := task.Validate(tc); err != nil {
		task.SetStatus(harness.StatusFailed)
		result.Err = err
		logger.WithError(err).Error("validation failed")
		return result
	}

	task.SetStatus(harness.StatusValidated)
	result.Status = harness.StatusValidated
	logger.Info("task validated", "run_id", runID)
	return result
}

// markCachedSteps restores the cached flags recorded at setup time
func markCachedSteps(task *harness.Task, snapshot *setup.TaskSnapshot) {
	for _, stepSnapshot := range snapshot.Steps {
		if !stepSnapshot.Cached {
			continue
		}
		if step, ok := task.Step(stepSnapshot.Name); ok {
			step.Cached = true
		}
	}
}

// selectSteps returns the names of the steps to run, in task order. An
// explicit step list wins over the persisted default set; skips only thin
// the default set.
func selectSteps(task *harness.Task, snapshot *setup.TaskSnapshot, opts Options) ([]string, error) {
	want := map[string]bool{}
	if len(opts.Steps) > 0 {
		for _, name := range opts.Steps {
			if _, ok := task.Step(name); !ok {
				return nil, errors.New(errors.ErrCodeStepUnknown,
					fmt.Sprintf("task %s has no step named %s", task.Path(), name))
			}
			want[name] = true
		}
	} else {
		for _, name := range snapshot.StepsToRun {
			want[name] = true
		}
		for _, name := range opts.SkipSteps {
			if _, ok := task.Step(name); !ok {
				return nil, errors.New(errors.ErrCodeStepUnknown,
					fmt.Sprintf("task %s has no step named %s", task.Path(), name))
			}
			delete(want, name)
		}
	}

	var selected []string
	for _, name := range task.StepNames() {
		if want[name] {
			selected = append(selected, name)
		}
	}
	return selected, nil
}

// runStep executes one step: constrain resources, check inputs, runtime
// setup, run, verify outputs, persist state. Cached steps skip execution;
// their outputs were materialized at setup time and are verified like any
// other step's.
func runStep(ctx context.Context, step *harness.Step, cfg *config.Config,
	info machine.Info, runID string, logger *log.Logger) StepResult {

	stepLogger := logger.With("step", step.Name)
	start := time.Now()
	result := StepResult{Name: step.Name, Outcome: OutcomeFailed}

	finish := func(outcome string, err error) StepResult {
		result.Outcome = outcome
		result.Duration = time.Since(start)
		result.Err = err
		state := StepState{
			RunID:     runID,
			Step:      step.Name,
			Path:      step.Path().String(),
			Outcome:   outcome,
			StartedAt: start.UTC(),
			Duration:  result.Duration.String(),
			Resources: step.Resources,
		}
		if err != nil {
			state.Error = err.Error()
		}
		if writeErr := writeState(step, state); writeErr != nil && err == nil {
			result.Outcome = OutcomeFailed
			result.Err = writeErr
		}
		return result
	}

	if step.Cached {
		if err := verifyOutputs(step); err != nil {
			return finish(OutcomeFailed, err)
		}
		stepLogger.Info("step served from cache")
		return finish(OutcomeCached, nil)
	}

	sc := &harness.StepContext{
		Step:    step,
		Config:  cfg,
		Logger:  stepLogger,
		WorkDir: step.WorkDir(),
		Machine: info,
	}

	if err := step.ConstrainResources(sc); err != nil {
		return finish(OutcomeFailed, err)
	}
	if err := verifyInputs(step); err != nil {
		return finish(OutcomeFailed, err)
	}
	if hook, ok := step.Body().(harness.RuntimeSetupHook); ok {
		if err := hook.RuntimeSetup(sc); err != nil {
			return finish(OutcomeFailed, errors.Wrap(errors.ErrCodeStepRunFailed,
				"runtime setup failed for step "+step.Name, err))
		}
	}

	stepLogger.Info("running step",
		"ntasks", step.Resources.NTasks, "cpus_per_task", step.Resources.CPUsPerTask)
	if err := step.Body().Run(ctx, sc); err != nil {
		return finish(OutcomeFailed, errors.Wrap(errors.ErrCodeStepRunFailed,
			"step "+step.Name+" failed", err))
	}
	if err := verifyOutputs(step); err != nil {
		return finish(OutcomeFailed, err)
	}

	stepLogger.Info("step succeeded", "duration", time.Since(start).String())
	return finish(OutcomeSuccess, nil)
}

// verifyInputs checks every declared input exists before the step runs.
// Symlinks are followed: a link to a file a failed producer never wrote is
// as missing as no link at all.
func verifyInputs(step *harness.Step) error {
	for _, recipe := range step.Inputs() {
		path := filepath.Join(step.WorkDir(), recipe.Filename)
		if _, err := os.Stat(path); err != nil {
			return errors.NewStepInputMissingError(step.Name, recipe.Filename)
		}
	}
	return nil
}

// verifyOutputs checks every declared output exists after the step ran
func verifyOutputs(step *harness.Step) error {
	for _, output := range step.Outputs() {
		path := filepath.Join(step.WorkDir(), output.Filename)
		if _, err := os.Stat(path); err != nil {
			return errors.NewStepOutputMissingError(step.Name, output.Filename)
		}
	}
	return nil
}
