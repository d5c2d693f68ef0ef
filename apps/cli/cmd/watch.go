package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/watchcat-dev/watchcat/packages/core/gate"
	"github.com/watchcat-dev/watchcat/packages/registry"
	"github.com/watchcat-dev/watchcat/packages/scriptenv"
	"github.com/watchcat-dev/watchcat/packages/watch"
)

var debounceMsFlag int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run tests continuously, re-running on file changes",
	Long: `Starts the scripting runtime, runs all test modules once and then
watches the test root for changes. Each change reloads the affected
modules (plus their dependents), re-discovers test files and triggers
a fresh run. Stop with Ctrl-C.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		if debounceMsFlag > 0 {
			cfg.DebounceMs = debounceMsFlag
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		env, err := scriptenv.StartCommand(ctx, cfg.Runtime.Command, cfg.Runtime.Args,
			scriptenv.WithConsole(cmd.OutOrStdout()))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitRuntimeError)
		}
		defer env.Close()

		reg := registry.New(env)
		orch := newOrchestrator(cmd, cfg, gate.New(), reg, env, "watch")

		env.OnReady(orch.SignalReady)
		go func() {
			if err := env.WaitReady(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Runtime error:"), err)
				cancel()
			}
		}()

		w := watch.New(orch, reg, cfg.TestRoot, cfg.Pattern, cfg.Suffix,
			watch.WithDebounce(cfg.Debounce()),
			watch.WithWriter(cmd.OutOrStdout()))

		forever, err := w.Start(ctx, "Waiting for the runtime...")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitConfigError)
		}

		// Blocks until interrupted; the watch future never settles.
		_ = forever.Await(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Watcher stopped")
	},
}

func init() {
	addStackFlags(watchCmd)
	watchCmd.Flags().IntVar(&debounceMsFlag, "debounce", getEnvInt("WATCHCAT_DEBOUNCE_MS", 0), "Debounce delay in milliseconds for file events (env: WATCHCAT_DEBOUNCE_MS)")
}
