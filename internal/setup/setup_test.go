package setup

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarlab/floe/internal/cache"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/suite"
)

// noopBody satisfies Runner for steps that are only set up in these tests
type noopBody struct{}

func (noopBody) Run(context.Context, *harness.StepContext) error { return nil }

func mustPath(t *testing.T, value string) domain.WorkPath {
	t.Helper()
	p, err := domain.NewWorkPath(value)
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newChannelComponent builds an ocean component with one two-step task:
// init produces the initial state, forward reads it.
func newChannelComponent(t *testing.T) (*harness.Component, *harness.Task) {
	t.Helper()
	component := harness.NewComponent("ocean")
	task := harness.NewTask("default", mustPath(t, "baroclinic_channel/10km/default"), nil)

	initStep := harness.NewStep("init", noopBody{})
	require.NoError(t, initStep.AddOutputFile(harness.OutputFile{Filename: "initial_state.flds"}))

	forward := harness.NewStep("forward", noopBody{})
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

func TestResolveMaterializesWorkTree(t *testing.T) {
	component, task := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)

	workDir := t.TempDir()
	result, err := Resolve(context.Background(), Options{WorkDir: workDir}, selections)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)

	taskDir := filepath.Join(workDir, "ocean/baroclinic_channel/10km/default")
	assert.DirExists(t, filepath.Join(taskDir, "init"))
	assert.DirExists(t, filepath.Join(taskDir, "forward"))
	assert.FileExists(t, filepath.Join(taskDir, "default.cfg"))
	assert.FileExists(t, filepath.Join(taskDir, SnapshotFilename))

	// forward's input is a relative symlink to init's output
	link := filepath.Join(taskDir, "forward", "initial_state.flds")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, "../init/initial_state.flds", target)

	assert.Equal(t, harness.StatusStepsSetUp, task.Status())
	assert.NotEmpty(t, result.SetupID)
}

func TestResolveConfigLayering(t *testing.T) {
	component, task := newChannelComponent(t)
	dir := t.TempDir()
	component.ConfigFiles = []string{writeFile(t, filepath.Join(dir, "ocean.cfg"),
		"[channel]\nresolution = 10\nviscosity = 100\n")}
	task.ConfigFiles = []string{writeFile(t, filepath.Join(dir, "default.cfg"),
		"[channel]\nviscosity = 200\n")}
	userConfig := writeFile(t, filepath.Join(dir, "user.cfg"),
		"[channel]\nviscosity = 400\n")

	registry, err := NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)

	workDir := t.TempDir()
	_, err = Resolve(context.Background(), Options{WorkDir: workDir, UserConfig: userConfig}, selections)
	require.NoError(t, err)

	// Later layers win, resolver paths are present
	viscosity, err := task.Config.GetInt("channel", "viscosity")
	require.NoError(t, err)
	assert.Equal(t, 400, viscosity)
	resolution, err := task.Config.GetInt("channel", "resolution")
	require.NoError(t, err)
	assert.Equal(t, 10, resolution)
	got, err := task.Config.Get("paths", "work_dir")
	require.NoError(t, err)
	assert.Equal(t, workDir, got)
}

func TestResolveDetectsStepPathCollision(t *testing.T) {
	component := harness.NewComponent("ocean")

	taskA := harness.NewTask("init_group", mustPath(t, "global_ocean/qu240"), nil)
	stepA := harness.NewStep("mesh", noopBody{}).WithSubdir("init/mesh")
	require.NoError(t, taskA.AddStep(stepA, true, ""))
	require.NoError(t, component.AddTask(taskA))

	taskB := harness.NewTask("init", mustPath(t, "global_ocean/qu240/init"), nil)
	stepB := harness.NewStep("mesh", noopBody{})
	require.NoError(t, taskB.AddStep(stepB, true, ""))
	require.NoError(t, component.AddTask(taskB))

	registry, err := NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{
		"ocean/global_ocean/qu240", "ocean/global_ocean/qu240/init",
	})
	require.NoError(t, err)

	_, err = Resolve(context.Background(), Options{WorkDir: t.TempDir()}, selections)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePathCollision))
}

func TestResolveSharedStepMaterializedOnce(t *testing.T) {
	component := harness.NewComponent("ocean")
	mesh := component.AddSharedStep(
		harness.NewStep("mesh", noopBody{}).WithSubdir("global_ocean/mesh/qu240"))

	makeTask := func(name string) *harness.Task {
		task := harness.NewTask(name, mustPath(t, "global_ocean/qu240/"+name), nil)
		require.NoError(t, task.AddStep(mesh, false, "mesh"))
		require.NoError(t, component.AddTask(task))
		return task
	}
	makeTask("init")
	makeTask("performance")

	registry, err := NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{
		"ocean/global_ocean/qu240/init", "ocean/global_ocean/qu240/performance",
	})
	require.NoError(t, err)

	workDir := t.TempDir()
	_, err = Resolve(context.Background(), Options{WorkDir: workDir}, selections)
	require.NoError(t, err)

	meshDir := filepath.Join(workDir, "ocean/global_ocean/mesh/qu240")
	assert.DirExists(t, meshDir)

	for _, name := range []string{"init", "performance"} {
		link := filepath.Join(workDir, "ocean/global_ocean/qu240", name, "mesh")
		target, err := os.Readlink(link)
		require.NoError(t, err)
		assert.Equal(t, meshDir, target)
	}
}

func TestResolveCachedStep(t *testing.T) {
	component, task := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	// The cache database maps init's output to a dated file under the
	// database root's cache tree
	databaseRoot := t.TempDir()
	cached := "ocean/baroclinic_channel/10km/default/init/initial_state.20260801.flds"
	writeFile(t, filepath.Join(databaseRoot, cacheSubdir, cached), "cached state")

	db := cache.New()
	db.Add(task.Path(), "init", "initial_state.flds", cached)

	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)
	selections[0].Cached = suite.Entry{TaskPath: task.Path(), CachedSteps: []string{"init"}}

	workDir := t.TempDir()
	result, err := Resolve(context.Background(), Options{
		WorkDir:      workDir,
		DatabaseRoot: databaseRoot,
		CacheDB:      db,
	}, selections)
	require.NoError(t, err)

	link := filepath.Join(workDir, "ocean/baroclinic_channel/10km/default/init/initial_state.flds")
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(databaseRoot, cacheSubdir, cached), target)

	initStep, ok := task.Step("init")
	require.True(t, ok)
	assert.True(t, initStep.Cached)
	assert.True(t, result.Snapshots[0].Steps[0].Cached)
}

func TestResolveCachedStepMissingEntry(t *testing.T) {
	component, task := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)
	selections[0].Cached = suite.Entry{TaskPath: task.Path(), Cached: true}

	_, err = Resolve(context.Background(), Options{
		WorkDir:      t.TempDir(),
		DatabaseRoot: t.TempDir(),
		CacheDB:      cache.New(),
	}, selections)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheEntryMissing))
}

func TestSnapshotRoundTrip(t *testing.T) {
	component, _ := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)
	selections, err := registry.SelectPaths([]string{"ocean/baroclinic_channel/10km/default"})
	require.NoError(t, err)

	workDir := t.TempDir()
	result, err := Resolve(context.Background(), Options{WorkDir: workDir}, selections)
	require.NoError(t, err)

	taskDir := filepath.Join(workDir, "ocean/baroclinic_channel/10km/default")
	loaded, err := LoadSnapshot(taskDir)
	require.NoError(t, err)
	assert.Equal(t, result.SetupID, loaded.SetupID)
	assert.Equal(t, []string{"init", "forward"}, loaded.StepsToRun)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, "ocean/baroclinic_channel/10km/default/forward", loaded.Steps[1].Path)
}

func TestLoadSnapshotMissing(t *testing.T) {
	_, err := LoadSnapshot(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeTaskNotConfigured))
}

func TestSelectNumbers(t *testing.T) {
	component, task := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	selections, err := registry.SelectNumbers([]int{1})
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.Same(t, task, selections[0].Task)

	_, err = registry.SelectNumbers([]int{2})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))
}

func TestSelectSuite(t *testing.T) {
	component, task := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	manifest := &suite.Manifest{
		Name: "nightly",
		Entries: []suite.Entry{
			{TaskPath: task.Path(), CachedSteps: []string{"init"}},
		},
	}
	selections, err := registry.SelectSuite(manifest)
	require.NoError(t, err)
	require.Len(t, selections, 1)
	assert.True(t, selections[0].Cached.CachesStep("init"))
	assert.False(t, selections[0].Cached.CachesStep("forward"))
}

func TestLookupUnknownTask(t *testing.T) {
	component, _ := newChannelComponent(t)
	registry, err := NewRegistry(component)
	require.NoError(t, err)

	_, err = registry.SelectPaths([]string{"ocean/no/such/task"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownTask))
}
