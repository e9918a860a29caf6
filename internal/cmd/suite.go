package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/report"
	"github.com/polarlab/floe/internal/run"
	"github.com/polarlab/floe/internal/setup"
	"github.com/polarlab/floe/internal/suite"
)

var suiteOpts struct {
	manifest  string
	setupOnly bool
}

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Set up and run a test suite",
	Long: `Read a suite manifest, set up every task it names and run them in
order. A failed task never stops the suite: every task runs, the report
carries per-task PASS/FAIL verdicts, and the exit status is non-zero if
any task failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := suite.Load(suiteOpts.manifest)
		if err != nil {
			return err
		}
		selections, err := registry.SelectSuite(manifest)
		if err != nil {
			return err
		}

		resolveOpts := resolveOptions()
		if _, err := setup.Resolve(cmd.Context(), resolveOpts, selections); err != nil {
			return err
		}
		if suiteOpts.setupOnly {
			return nil
		}

		opts := run.Options{WorkDir: resolveOpts.WorkDir, Logger: log.DefaultLogger()}
		result := run.RunSuite(cmd.Context(), opts, manifest.Name, selections)
		report.WriteSuite(os.Stdout, result)
		return result.Err()
	},
}

func init() {
	addSetupFlags(suiteCmd)
	suiteCmd.Flags().StringVarP(&suiteOpts.manifest, "suite", "s", "", "suite manifest file (required)")
	suiteCmd.Flags().BoolVar(&suiteOpts.setupOnly, "setup-only", false, "set the suite up without running it")
	_ = suiteCmd.MarkFlagRequired("suite")
	rootCmd.AddCommand(suiteCmd)
}
