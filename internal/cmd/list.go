package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/polarlab/floe/internal/report"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered tasks",
	Long: `Print every registered task path with its number. The numbers are
stable across invocations and are what 'floe setup -n' accepts.`,
	RunE: func(*cobra.Command, []string) error {
		paths := registry.TaskPaths()
		if listFormat == "text" || listFormat == "" {
			report.WriteTaskList(os.Stdout, paths)
			return nil
		}
		formatter, err := report.NewFormatter(listFormat, os.Stdout)
		if err != nil {
			return err
		}
		return formatter.Format(report.Listing(paths))
	},
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "o", "text", "output format (text, json, yaml)")
	rootCmd.AddCommand(listCmd)
}
