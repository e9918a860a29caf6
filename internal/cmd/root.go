// Package cmd wires the floe commands. Every command is a thin wrapper:
// selection, setup, running and reporting live in the core packages.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/log"
	"github.com/polarlab/floe/internal/setup"
)

var registry *setup.Registry

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "floe",
	Short: "Climate-model regression test orchestration",
	Long: `floe sets up and runs regression test cases for climate model components.
Components register tasks made of ordered steps; floe layers their
configuration, materializes work directories, runs the steps in order and
validates outputs against baselines.`,
	SilenceUsage: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		cfg := log.DefaultConfig()
		cfg.Level = log.ParseLevel(logLevel)
		log.SetDefaultLogger(log.New(cfg))
	},
}

// Execute registers the given components and runs the CLI
func Execute(components ...*harness.Component) error {
	return ExecuteContext(context.Background(), components...)
}

// ExecuteContext is Execute with a caller-owned context, so interrupt
// signals cancel running steps
func ExecuteContext(ctx context.Context, components ...*harness.Component) error {
	r, err := setup.NewRegistry(components...)
	if err != nil {
		return err
	}
	registry = r
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
}
