package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/report"
	"github.com/polarlab/floe/internal/run"
)

var serialOpts struct {
	workDir   string
	steps     []string
	skipSteps []string
}

var serialCmd = &cobra.Command{
	Use:   "serial <task-path>",
	Short: "Run one set-up task",
	Long: `Run a task that 'floe setup' already resolved. Steps execute strictly
in their declared order; --steps replaces the default step set entirely,
--skip-steps removes steps from it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		selections, err := registry.SelectPaths(args)
		if err != nil {
			return err
		}
		opts := run.Options{
			WorkDir:   serialOpts.workDir,
			Steps:     serialOpts.steps,
			SkipSteps: serialOpts.skipSteps,
			Logger:    log.DefaultLogger(),
		}
		result := run.RunTask(cmd.Context(), opts, selections[0])
		report.WriteTask(os.Stdout, result)
		return result.Err
	},
}

func init() {
	serialCmd.Flags().StringVarP(&serialOpts.workDir, "work-dir", "w", "", "work directory set up by 'floe setup' (required)")
	serialCmd.Flags().StringSliceVar(&serialOpts.steps, "steps", nil, "run exactly these steps")
	serialCmd.Flags().StringSliceVar(&serialOpts.skipSteps, "skip-steps", nil, "drop these steps from the default set")
	_ = serialCmd.MarkFlagRequired("work-dir")
	rootCmd.AddCommand(serialCmd)
}
