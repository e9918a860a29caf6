package cmd

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/cache"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/setup"
)

var cacheOpts struct {
	workDir      string
	databaseRoot string
	manifest     string
	steps        []string
}

var cacheCmd = &cobra.Command{
	Use:   "cache <task-path ...>",
	Short: "Publish step outputs to the cache database",
	Long: `Copy the outputs of completed steps into the database's cache tree
under date-versioned names and record them in the cache manifest. Suites
can then mark those steps 'cached' and skip recomputing them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := cache.Load(cacheOpts.manifest)
		if err != nil {
			return err
		}
		logger := log.DefaultLogger()

		for _, raw := range args {
			if err := publishTask(db, raw, logger); err != nil {
				return err
			}
		}
		return db.Save(cacheOpts.manifest)
	},
}

// publishTask copies one task's step outputs into the cache tree
func publishTask(db *cache.Database, raw string, logger *log.Logger) error {
	taskPath, err := domain.NewWorkPath(raw)
	if err != nil {
		return errors.Wrap(errors.ErrCodeUnknownTask, "invalid task path "+raw, err)
	}
	taskDir := filepath.Join(cacheOpts.workDir, taskPath.String())
	snapshot, err := setup.LoadSnapshot(taskDir)
	if err != nil {
		return err
	}

	wanted := map[string]bool{}
	for _, name := range cacheOpts.steps {
		wanted[name] = true
	}

	now := time.Now()
	for _, step := range snapshot.Steps {
		if len(wanted) > 0 && !wanted[step.Name] {
			continue
		}
		for _, output := range step.Outputs {
			cached := db.AddDated(taskPath, step.Name, output.Filename, now)
			src := filepath.Join(step.WorkDir, output.Filename)
			dest := filepath.Join(cacheOpts.databaseRoot, "floe_cache", cached)
			if err := copyIntoCache(src, dest); err != nil {
				return err
			}
			logger.Info("cached step output",
				"task", taskPath.String(), "step", step.Name, "file", cached)
		}
	}
	return nil
}

func copyIntoCache(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create directory for "+dest, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileReadFailed, "failed to open step output "+src, err)
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

func init() {
	cacheCmd.Flags().StringVarP(&cacheOpts.workDir, "work-dir", "w", "", "work directory the tasks ran in (required)")
	cacheCmd.Flags().StringVar(&cacheOpts.databaseRoot, "database-root", "", "local tree of shared input files (required)")
	cacheCmd.Flags().StringVar(&cacheOpts.manifest, "manifest", "", "cache manifest to update (required)")
	cacheCmd.Flags().StringSliceVar(&cacheOpts.steps, "steps", nil, "only publish these steps")
	_ = cacheCmd.MarkFlagRequired("work-dir")
	_ = cacheCmd.MarkFlagRequired("database-root")
	_ = cacheCmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(cacheCmd)
}
