package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarlab/floe/internal/cache"
	"github.com/polarlab/floe/internal/dataset"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/setup"
	"github.com/polarlab/floe/internal/suite"
)

// datasetWriter writes one dataset file, standing in for a model run
type datasetWriter struct {
	filename string
	values   []float64
	calls    *int
}

func (w datasetWriter) Run(_ context.Context, sc *harness.StepContext) error {
	if w.calls != nil {
		*w.calls++
	}
	d := dataset.New()
	d.SetFloat64("temperature", []int{len(w.values)}, w.values)
	return d.Write(sc.Path(w.filename))
}

// forwardBody reads the initial state and writes the model output
type forwardBody struct{}

func (forwardBody) Run(_ context.Context, sc *harness.StepContext) error {
	in, err := dataset.Read(sc.Path("initial_state.flds"))
	if err != nil {
		return err
	}
	values, err := in.Float64("temperature")
	if err != nil {
		return err
	}
	for i := range values {
		values[i] += 0.5
	}
	out := dataset.New()
	out.SetFloat64("temperature", []int{len(values)}, values)
	return out.Write(sc.Path("output.flds"))
}

// failingBody always fails without producing outputs
type failingBody struct{}

func (failingBody) Run(context.Context, *harness.StepContext) error {
	return fmt.Errorf("solver diverged")
}

// recordingHooks records Validate calls and their executed-step view
type recordingHooks struct {
	validated bool
	executed  []string
}

func (h *recordingHooks) Validate(tc *harness.TaskContext) error {
	h.validated = true
	h.executed = tc.ExecutedSteps
	return nil
}

func mustPath(t *testing.T, value string) domain.WorkPath {
	t.Helper()
	p, err := domain.NewWorkPath(value)
	require.NoError(t, err)
	return p
}

// newChannelTask builds a two-step init/forward task with the given bodies
func newChannelTask(t *testing.T, name string, initBody, fwdBody harness.Runner, hooks any) (*harness.Component, *harness.Task) {
	t.Helper()
	component := harness.NewComponent("ocean")
	task := harness.NewTask(name, mustPath(t, "baroclinic_channel/10km/"+name), hooks)

	initStep := harness.NewStep("init", initBody)
	require.NoError(t, initStep.AddOutputFile(harness.OutputFile{Filename: "initial_state.flds"}))

	forward := harness.NewStep("forward", fwdBody)
	require.NoError(t, forward.AddInputFile(harness.InputRecipe{
		Filename: "initial_state.flds",
		Target:   "../init/initial_state.flds",
	}))
	require.NoError(t, forward.AddOutputFile(harness.OutputFile{
		Filename:     "output.flds",
		ValidateVars: []string{"temperature"},
	}))

	require.NoError(t, task.AddStep(initStep, true, ""))
	require.NoError(t, task.AddStep(forward, true, ""))
	require.NoError(t, component.AddTask(task))
	return component, task
}

func resolve(t *testing.T, component *harness.Component, taskPath, workDir string, opts setup.Options) []setup.Selection {
	t.Helper()
	registry, err := setup.NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{taskPath})
	require.NoError(t, err)
	opts.WorkDir = workDir
	_, err = setup.Resolve(context.Background(), opts, selections)
	require.NoError(t, err)
	return selections
}

func TestRunTaskEndToEnd(t *testing.T) {
	hooks := &recordingHooks{}
	component, task := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{10, 11}},
		forwardBody{}, hooks)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir}, selections[0])
	require.NoError(t, result.Err)
	assert.True(t, result.Passed())
	assert.Equal(t, harness.StatusValidated, task.Status())

	taskDir := filepath.Join(workDir, "ocean/baroclinic_channel/10km/default")
	assert.FileExists(t, filepath.Join(taskDir, "init", "initial_state.flds"))
	assert.FileExists(t, filepath.Join(taskDir, "forward", "output.flds"))

	// Validate saw exactly the steps that ran
	assert.True(t, hooks.validated)
	assert.Equal(t, []string{"init", "forward"}, hooks.executed)

	// Each step left a state snapshot stamped with the same run id
	initState, err := ReadState(filepath.Join(taskDir, "init"))
	require.NoError(t, err)
	forwardState, err := ReadState(filepath.Join(taskDir, "forward"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, initState.Outcome)
	assert.Equal(t, OutcomeSuccess, forwardState.Outcome)
	assert.Equal(t, initState.RunID, forwardState.RunID)
	assert.NotEmpty(t, initState.RunID)
}

func TestRunTaskStepFailureSkipsRemaining(t *testing.T) {
	hooks := &recordingHooks{}
	component, task := newChannelTask(t, "default", failingBody{}, forwardBody{}, hooks)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir}, selections[0])
	require.Error(t, result.Err)
	assert.True(t, errors.HasCode(result.Err, errors.ErrCodeTaskFailed))
	assert.Equal(t, harness.StatusFailed, task.Status())

	require.Len(t, result.Steps, 2)
	assert.Equal(t, OutcomeFailed, result.Steps[0].Outcome)
	assert.Equal(t, OutcomeSkipped, result.Steps[1].Outcome)

	// Validation never runs after a failed step
	assert.False(t, hooks.validated)

	taskDir := filepath.Join(workDir, "ocean/baroclinic_channel/10km/default")
	state, err := ReadState(filepath.Join(taskDir, "init"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, state.Outcome)
	assert.Contains(t, state.Error, "solver diverged")
}

func TestRunTaskMissingOutputFailsStep(t *testing.T) {
	// The init body succeeds but never writes its declared output
	component, _ := newChannelTask(t, "default",
		datasetWriter{filename: "wrong_name.flds", values: []float64{1}},
		forwardBody{}, nil)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir}, selections[0])
	require.Error(t, result.Err)
	assert.True(t, errors.HasCode(result.Err, errors.ErrCodeStepOutputMissing))
}

func TestRunTaskExplicitStepsWin(t *testing.T) {
	initCalls, forwardCalls := 0, 0
	component, _ := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{1}, calls: &initCalls},
		datasetWriter{filename: "output.flds", values: []float64{2}, calls: &forwardCalls}, nil)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir, Steps: []string{"init"}}, selections[0])
	require.NoError(t, result.Err)
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, 0, forwardCalls)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "init", result.Steps[0].Name)
}

func TestRunTaskUnknownStep(t *testing.T) {
	component, _ := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{1}},
		forwardBody{}, nil)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir, Steps: []string{"nope"}}, selections[0])
	require.Error(t, result.Err)
	assert.True(t, errors.HasCode(result.Err, errors.ErrCodeStepUnknown))
}

func TestRunTaskSkipSteps(t *testing.T) {
	initCalls, forwardCalls := 0, 0
	component, _ := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{1}, calls: &initCalls},
		datasetWriter{filename: "output.flds", values: []float64{2}, calls: &forwardCalls}, nil)

	workDir := t.TempDir()
	selections := resolve(t, component, "ocean/baroclinic_channel/10km/default", workDir, setup.Options{})

	result := RunTask(context.Background(), Options{WorkDir: workDir, SkipSteps: []string{"forward"}}, selections[0])
	require.NoError(t, result.Err)
	assert.Equal(t, 1, initCalls)
	assert.Equal(t, 0, forwardCalls)
}

func TestRunTaskCachedStepSkipsBody(t *testing.T) {
	initCalls := 0
	component, task := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{1}, calls: &initCalls},
		forwardBody{}, nil)

	// Cache carries init's output as a dated file in the database tree
	databaseRoot := t.TempDir()
	cachedName := "ocean/baroclinic_channel/10km/default/init/initial_state.20260801.flds"
	cachedFile := filepath.Join(databaseRoot, "floe_cache", cachedName)
	require.NoError(t, os.MkdirAll(filepath.Dir(cachedFile), 0o755))
	d := dataset.New()
	d.SetFloat64("temperature", []int{2}, []float64{4, 5})
	require.NoError(t, d.Write(cachedFile))

	db := cache.New()
	db.Add(task.Path(), "init", "initial_state.flds", cachedName)

	registry, err := setup.NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)
	selections[0].Cached = suite.Entry{TaskPath: task.Path(), CachedSteps: []string{"init"}}

	workDir := t.TempDir()
	_, err = setup.Resolve(context.Background(), setup.Options{
		WorkDir:      workDir,
		DatabaseRoot: databaseRoot,
		CacheDB:      db,
	}, selections)
	require.NoError(t, err)

	result := RunTask(context.Background(), Options{WorkDir: workDir}, selections[0])
	require.NoError(t, result.Err)
	assert.Equal(t, 0, initCalls)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, OutcomeCached, result.Steps[0].Outcome)
	assert.Equal(t, OutcomeSuccess, result.Steps[1].Outcome)

	// forward consumed the cached state
	out, err := dataset.Read(filepath.Join(workDir,
		"ocean/baroclinic_channel/10km/default/forward/output.flds"))
	require.NoError(t, err)
	values, err := out.Float64("temperature")
	require.NoError(t, err)
	assert.Equal(t, []float64{4.5, 5.5}, values)
}

func TestRunSuiteContinuesPastFailure(t *testing.T) {
	component := harness.NewComponent("ocean")

	addTask := func(name string, initBody harness.Runner) {
		task := harness.NewTask(name, mustPath(t, "baroclinic_channel/10km/"+name), nil)
		initStep := harness.NewStep("init", initBody)
		require.NoError(t, initStep.AddOutputFile(harness.OutputFile{Filename: "initial_state.flds"}))
		require.NoError(t, task.AddStep(initStep, true, ""))
		require.NoError(t, component.AddTask(task))
	}
	addTask("default", failingBody{})
	addTask("restart", datasetWriter{filename: "initial_state.flds", values: []float64{1}})

	registry, err := setup.NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{
		"ocean/baroclinic_channel/10km/default",
		"ocean/baroclinic_channel/10km/restart",
	})
	require.NoError(t, err)

	workDir := t.TempDir()
	_, err = setup.Resolve(context.Background(), setup.Options{WorkDir: workDir}, selections)
	require.NoError(t, err)

	result := RunSuite(context.Background(), Options{WorkDir: workDir}, "nightly", selections)
	passed, failed := result.Counts()
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, failed)
	assert.False(t, result.Passed())

	err = result.Err()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeSuiteFailed))

	// The failed task never stopped the passing one
	assert.True(t, result.Tasks[1].Passed())
}

func TestRunTaskWithoutSetup(t *testing.T) {
	component, _ := newChannelTask(t, "default",
		datasetWriter{filename: "initial_state.flds", values: []float64{1}},
		forwardBody{}, nil)
	registry, err := setup.NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)

	result := RunTask(context.Background(), Options{WorkDir: t.TempDir()}, selections[0])
	require.Error(t, result.Err)
	assert.True(t, errors.HasCode(result.Err, errors.ErrCodeTaskNotConfigured))
}
