package setup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/polarlab/floe/internal/cache"
	"github.com/polarlab/floe/internal/config"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/download"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/machine"
)

// cacheSubdir is where cached step outputs land inside the database root
const cacheSubdir = "floe_cache"

// Options configures one resolve
type Options struct {
	// WorkDir is the root of the work tree being set up
	WorkDir string
	// MachineConfig is an optional machine-specific config file, the first
	// layer of every task's config
	MachineConfig string
	// UserConfig is an optional user config file, the last layer; it wins
	// every conflict except resolver-owned paths
	UserConfig string
	// Baseline is the root of a baseline work tree for validation, optional
	Baseline string
	// DatabaseRoot is the local tree of shared input files
	DatabaseRoot string
	// DatabaseURL is the base URL database files are fetched from when the
	// local root does not carry them
	DatabaseURL string
	// CacheDB maps cached step outputs to files under the database root
	CacheDB *cache.Database

	Logger     *log.Logger
	Downloader *download.Client
}

func (o *Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Result describes one completed resolve
type Result struct {
	// SetupID stamps every snapshot written by this resolve
	SetupID string
	// Machine is the discovered resource envelope
	Machine machine.Info
	// Snapshots are the per-task setup snapshots, in selection order
	Snapshots []*TaskSnapshot
}

// Resolve expands the selections into bound, materialized task work
// directories under opts.WorkDir. All configuration and dependency errors
// surface here, before any step runs.
func Resolve(ctx context.Context, opts Options, selections []Selection) (*Result, error) {
	if opts.WorkDir == "" {
		return nil, errors.New(errors.ErrCodeConfigNotFound, "no work directory given").
			WithSuggestion("Pass -w/--work-dir to 'floe setup'")
	}
	logger := opts.logger()
	setupID := uuid.NewString()

	// Phase 1: config layering and Configure hooks. Hooks may rebuild
	// config-driven step sets, so binding waits until they have run.
	for _, selection := range selections {
		if err := configureTask(opts, selection, logger); err != nil {
			return nil, err
		}
	}

	// Phase 2: bind every step to its canonical path and absolute work
	// directory, then check the whole selection for path collisions before
	// touching the filesystem.
	for _, selection := range selections {
		BindTask(opts.WorkDir, selection.Task)
	}
	if err := checkCollisions(selections); err != nil {
		return nil, err
	}
	for _, selection := range selections {
		if err := harness.ValidateStepGraph(selection.Task); err != nil {
			return nil, err
		}
	}

	// Phase 3: materialize. From here on the work tree is being written;
	// a failure leaves a partial tree behind but never a wrong graph.
	result := &Result{SetupID: setupID}
	materialized := map[domain.WorkPath]bool{}
	for _, selection := range selections {
		snapshot, info, err := materializeTask(ctx, opts, selection, setupID, materialized, logger)
		if err != nil {
			return nil, err
		}
		result.Machine = info
		result.Snapshots = append(result.Snapshots, snapshot)
	}

	logger.Info("setup complete",
		"tasks", len(selections), "work_dir", opts.WorkDir, "setup_id", setupID)
	return result, nil
}

// configureTask layers the task's config and runs its Configure hook
func configureTask(opts Options, selection Selection, logger *log.Logger) error {
	task := selection.Task
	cfg := config.New()

	if opts.MachineConfig != "" {
		if err := cfg.AddFromFile(opts.MachineConfig); err != nil {
			return err
		}
	}
	for _, file := range selection.Component.ConfigFiles {
		if err := cfg.AddFromFile(file); err != nil {
			return err
		}
	}
	for _, file := range task.ConfigFiles {
		if err := cfg.AddFromFile(file); err != nil {
			return err
		}
	}
	if opts.UserConfig != "" {
		if err := cfg.AddFromFile(opts.UserConfig); err != nil {
			return err
		}
	}

	// Resolver-owned paths land last so no layer can redirect the work tree
	cfg.SetWithComment("paths", "work_dir", opts.WorkDir, "root of the work tree")
	if opts.DatabaseRoot != "" {
		cfg.SetWithComment("paths", "database_root", opts.DatabaseRoot, "shared input file tree")
	}
	if opts.Baseline != "" {
		cfg.SetWithComment("paths", "baseline", opts.Baseline, "baseline work tree for validation")
	}

	task.Config = cfg
	tc := &harness.TaskContext{
		Task:     task,
		Config:   cfg,
		Logger:   logger.With("task", task.Path().String()),
		WorkDir:  filepath.Join(opts.WorkDir, task.Path().String()),
		Baseline: baselineDir(opts.Baseline, task),
	}
	if err := task.Configure(tc); err != nil {
		return errors.Wrap(errors.ErrCodeTaskFailed,
			"configure failed for task "+task.Path().String(), err)
	}
	return nil
}

func baselineDir(baseline string, task *harness.Task) string {
	if baseline == "" {
		return ""
	}
	return filepath.Join(baseline, task.Path().String())
}

// BindTask attaches absolute work directories to the task and its steps.
// Shared steps keep the canonical path the component bound; everything else
// lives under the task's own subtree. The runner calls this after replaying
// Configure in a fresh process.
func BindTask(workDir string, task *harness.Task) {
	taskDir := filepath.Join(workDir, task.Path().String())
	task.Bind(task.Path(), taskDir)

	for _, step := range task.Steps() {
		path := step.Path()
		if !step.Shared {
			path = task.Path().Join(step.Subdir)
		}
		step.Bind(path, filepath.Join(workDir, path.String()))
	}
}

// checkCollisions rejects two distinct steps claiming one canonical path.
// The same shared instance appearing in several tasks is the one legal
// form of reuse.
func checkCollisions(selections []Selection) error {
	type claim struct {
		step  *harness.Step
		owner string
	}
	claims := map[domain.WorkPath]claim{}

	for _, selection := range selections {
		task := selection.Task
		for _, step := range task.Steps() {
			path := step.Path()
			if existing, ok := claims[path]; ok {
				if existing.step == step {
					continue
				}
				return errors.NewPathCollisionError(path.String(),
					existing.owner, task.Path().String()+"/"+step.Name)
			}
			claims[path] = claim{step: step, owner: task.Path().String() + "/" + step.Name}
		}
	}
	return nil
}

// materializeTask runs Setup hooks, freezes declarations, writes the work
// tree for one task, and persists its config and snapshot
func materializeTask(ctx context.Context, opts Options, selection Selection,
	setupID string, materialized map[domain.WorkPath]bool, logger *log.Logger) (*TaskSnapshot, machine.Info, error) {

	task := selection.Task
	taskLogger := logger.With("task", task.Path().String())
	info := machine.Discover(task.Config)

	if err := os.MkdirAll(task.WorkDir(), 0o755); err != nil {
		return nil, info, errors.Wrap(errors.ErrCodeFileWriteFailed,
			"failed to create task directory "+task.WorkDir(), err)
	}

	for _, step := range task.Steps() {
		if selection.Cached.CachesStep(step.Name) {
			step.Cached = true
		}
		if materialized[step.Path()] {
			// Shared step already written by an earlier task this resolve
			if err := linkSharedStep(task, step); err != nil {
				return nil, info, err
			}
			continue
		}

		sc := &harness.StepContext{
			Step:    step,
			Config:  task.Config,
			Logger:  taskLogger.With("step", step.Name),
			WorkDir: step.WorkDir(),
			Machine: info,
		}
		if hook, ok := step.Body().(harness.SetupHook); ok {
			if err := hook.Setup(sc); err != nil {
				return nil, info, errors.Wrap(errors.ErrCodeTaskFailed,
					fmt.Sprintf("setup hook failed for step %s", step.Path()), err)
			}
		}
		step.MarkSetUp()

		if err := materializeStep(ctx, opts, task, step, taskLogger); err != nil {
			return nil, info, err
		}
		materialized[step.Path()] = true

		if err := linkSharedStep(task, step); err != nil {
			return nil, info, err
		}
	}

	configFile := filepath.Join(task.WorkDir(), task.Name+".cfg")
	if err := task.Config.Validate(); err != nil {
		return nil, info, err
	}
	if err := task.Config.WriteFile(configFile); err != nil {
		return nil, info, err
	}

	task.SetStatus(harness.StatusStepsSetUp)
	snapshot := buildSnapshot(setupID, task, baselineDir(opts.Baseline, task), configFile)
	if err := snapshot.Write(); err != nil {
		return nil, info, err
	}
	taskLogger.Info("task set up", "steps", len(task.StepNames()), "work_dir", task.WorkDir())
	return snapshot, info, nil
}

// linkSharedStep creates the task-local alias for a step living outside the
// task's subtree
func linkSharedStep(task *harness.Task, step *harness.Step) error {
	alias, ok := task.Symlink(step.Name)
	if !ok {
		return nil
	}
	link := filepath.Join(task.WorkDir(), alias)
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create directory for "+link, err)
	}
	return replaceSymlink(step.WorkDir(), link)
}

// materializeStep writes the step's work directory and its input files.
// Cached steps get their outputs from the cache database instead; their
// inputs are never fetched because the step will not run.
func materializeStep(ctx context.Context, opts Options, task *harness.Task,
	step *harness.Step, logger *log.Logger) error {

	if err := os.MkdirAll(step.WorkDir(), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed,
			"failed to create step directory "+step.WorkDir(), err)
	}

	if step.Cached {
		return materializeCachedOutputs(ctx, opts, task, step, logger)
	}

	for _, recipe := range step.Inputs() {
		if err := materializeInput(ctx, opts, step, recipe); err != nil {
			return err
		}
	}
	return nil
}

func materializeInput(ctx context.Context, opts Options, step *harness.Step, recipe harness.InputRecipe) error {
	dest := filepath.Join(step.WorkDir(), recipe.Filename)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create directory for "+dest, err)
	}

	switch recipe.Mode() {
	case "download":
		if opts.Downloader == nil {
			return errors.New(errors.ErrCodeDownloadFailed,
				fmt.Sprintf("step %s input %s needs a download client", step.Name, recipe.Filename))
		}
		return opts.Downloader.File(ctx, recipe.URL, dest)

	case "database":
		src, err := databaseFile(ctx, opts, recipe.Database)
		if err != nil {
			return errors.Wrap(errors.ErrCodeFileNotFound,
				fmt.Sprintf("step %s input %s", step.Name, recipe.Filename), err)
		}
		return replaceSymlink(src, dest)

	case "copy":
		src := recipe.Target
		if !filepath.IsAbs(src) {
			src = filepath.Join(filepath.Dir(dest), src)
		}
		return copyFile(src, dest)

	default:
		// Relative targets are resolved by the filesystem against the
		// link's own directory, which keeps the work tree relocatable
		return replaceSymlink(recipe.Target, dest)
	}
}

// databaseFile returns the absolute path of a file in the database root,
// fetching it from the database URL on first use
func databaseFile(ctx context.Context, opts Options, relPath string) (string, error) {
	if opts.DatabaseRoot == "" {
		return "", errors.New(errors.ErrCodeConfigNotFound, "no database root configured").
			WithSuggestion("Set [paths] database_root in the machine or user config")
	}
	src := filepath.Join(opts.DatabaseRoot, relPath)
	if _, err := os.Stat(src); err == nil {
		return src, nil
	}
	if opts.DatabaseURL == "" || opts.Downloader == nil {
		return "", errors.NewFileNotFoundError(src)
	}
	if err := opts.Downloader.File(ctx, opts.DatabaseURL+"/"+relPath, src); err != nil {
		return "", err
	}
	return src, nil
}

// materializeCachedOutputs replaces a cached step's computation with
// symlinks to date-versioned files from the cache database
func materializeCachedOutputs(ctx context.Context, opts Options, task *harness.Task,
	step *harness.Step, logger *log.Logger) error {

	if opts.CacheDB == nil {
		return errors.New(errors.ErrCodeCacheManifestError,
			fmt.Sprintf("step %s is cached but no cache database is loaded", step.Name))
	}

	for _, output := range step.Outputs() {
		cached, err := opts.CacheDB.Lookup(task.Path(), step.Name, output.Filename)
		if err != nil {
			return err
		}
		src, err := databaseFile(ctx, opts, filepath.Join(cacheSubdir, cached))
		if err != nil {
			return errors.Wrap(errors.ErrCodeCacheEntryMissing,
				fmt.Sprintf("cached output %s of step %s", output.Filename, step.Name), err)
		}
		dest := filepath.Join(step.WorkDir(), output.Filename)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create directory for "+dest, err)
		}
		if err := replaceSymlink(src, dest); err != nil {
			return err
		}
	}
	logger.Debug("cached outputs materialized", "step", step.Name, "outputs", len(step.Outputs()))
	return nil
}

// replaceSymlink creates a symlink, replacing any previous link so a second
// resolve over the same tree is idempotent
func replaceSymlink(target, link string) error {
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to replace "+link, err)
	}
	if err := os.Symlink(target, link); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to link "+link, err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to open "+src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create "+dest, err)
	}
	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to copy to "+dest, err)
	}
	return nil
}
