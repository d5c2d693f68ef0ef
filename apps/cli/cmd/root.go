package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "watchcat",
	Short: "Run scripting-environment tests, re-run them on change.",
	Long: `watchcat discovers script test files, waits for the runtime to
signal readiness, runs the tests and aggregates pass/fail/error counts
into a single verdict. In watch mode it re-runs the affected modules
whenever source files change.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsageError)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
