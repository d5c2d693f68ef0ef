package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/watchcat-dev/watchcat/packages/discovery"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered test modules",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		files, err := discovery.Discover(cfg.TestRoot, cfg.Pattern, cfg.Suffix)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitConfigError)
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No test modules found under %s\n", cfg.TestRoot)
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "Found %d test module(s) under %s:\n", len(files), cfg.TestRoot)
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s  (%s)\n", cyan(f.Ref.String()), f.Path)
		}
	},
}

func init() {
	addStackFlags(listCmd)
}
