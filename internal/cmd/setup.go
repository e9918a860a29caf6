package cmd

import (
	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/cache"
	"github.com/polarlab/floe/internal/download"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/setup"
)

var setupOpts struct {
	workDir       string
	numbers       []int
	machineConfig string
	userConfig    string
	baseline      string
	databaseRoot  string
	databaseURL   string
	cacheManifest string
}

var setupCmd = &cobra.Command{
	Use:   "setup [task-path ...]",
	Short: "Set up task work directories",
	Long: `Resolve the selected tasks into work directories: layer their
configuration, run Configure hooks, check the step graph, materialize
input files and write the setup snapshot each task run needs.

Tasks are selected by path, or by number with -n (see 'floe list').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		selections, err := selectTasks(args, setupOpts.numbers)
		if err != nil {
			return err
		}
		_, err = setup.Resolve(cmd.Context(), resolveOptions(), selections)
		return err
	},
}

// selectTasks resolves paths and numbers into one selection list
func selectTasks(paths []string, numbers []int) ([]setup.Selection, error) {
	selections, err := registry.SelectPaths(paths)
	if err != nil {
		return nil, err
	}
	byNumber, err := registry.SelectNumbers(numbers)
	if err != nil {
		return nil, err
	}
	return append(selections, byNumber...), nil
}

func resolveOptions() setup.Options {
	logger := log.DefaultLogger()
	opts := setup.Options{
		WorkDir:       setupOpts.workDir,
		MachineConfig: setupOpts.machineConfig,
		UserConfig:    setupOpts.userConfig,
		Baseline:      setupOpts.baseline,
		DatabaseRoot:  setupOpts.databaseRoot,
		DatabaseURL:   setupOpts.databaseURL,
		Logger:        logger,
		Downloader:    download.NewClient(logger),
	}
	if setupOpts.cacheManifest != "" {
		db, err := cache.Load(setupOpts.cacheManifest)
		if err != nil {
			logger.WithError(err).Warn("ignoring unreadable cache manifest",
				"manifest", setupOpts.cacheManifest)
		} else {
			opts.CacheDB = db
		}
	}
	return opts
}

func addSetupFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&setupOpts.workDir, "work-dir", "w", "", "work directory to set up (required)")
	cmd.Flags().StringVarP(&setupOpts.machineConfig, "machine", "m", "", "machine config file")
	cmd.Flags().StringVarP(&setupOpts.userConfig, "config", "f", "", "user config file, the last config layer")
	cmd.Flags().StringVarP(&setupOpts.baseline, "baseline", "b", "", "baseline work tree to validate against")
	cmd.Flags().StringVar(&setupOpts.databaseRoot, "database-root", "", "local tree of shared input files")
	cmd.Flags().StringVar(&setupOpts.databaseURL, "database-url", "", "base URL for missing database files")
	cmd.Flags().StringVar(&setupOpts.cacheManifest, "cache-manifest", "", "cache database manifest for cached steps")
	_ = cmd.MarkFlagRequired("work-dir")
}

func init() {
	addSetupFlags(setupCmd)
	setupCmd.Flags().IntSliceVarP(&setupOpts.numbers, "number", "n", nil, "task numbers from 'floe list'")
	rootCmd.AddCommand(setupCmd)
}
