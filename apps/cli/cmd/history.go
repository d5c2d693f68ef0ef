package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/watchcat-dev/watchcat/packages/history"
)

var historyLimitFlag int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent run outcomes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitConfigError)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := store.Recent(ctx, historyLimitFlag)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitConfigError)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")
			return
		}

		for _, e := range entries {
			glyph := color.New(color.FgGreen).Sprint("✅")
			if !e.Resolved {
				glyph = color.New(color.FgRed).Sprint("❌")
			}
			line := fmt.Sprintf("%s %s  [%s]  %d passed, %d failed, %d errored",
				glyph, e.StartedAt.Format("2006-01-02 15:04:05"), e.Trigger,
				e.Pass, e.Fail, e.Error)
			if e.Reason != "" {
				line += "  " + e.Reason
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	},
}

func init() {
	addStackFlags(historyCmd)
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", getEnvInt("WATCHCAT_HISTORY_LIMIT", 20), "Maximum entries to show (env: WATCHCAT_HISTORY_LIMIT)")
}
