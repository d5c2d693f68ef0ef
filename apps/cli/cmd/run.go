package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/watchcat-dev/watchcat/packages/config"
	"github.com/watchcat-dev/watchcat/packages/core/gate"
	"github.com/watchcat-dev/watchcat/packages/discovery"
	"github.com/watchcat-dev/watchcat/packages/registry"
	"github.com/watchcat-dev/watchcat/packages/scriptenv"
)

var (
	configFlag    string
	rootFlag      string
	patternFlag   string
	suffixFlag    string
	minPassesFlag int
	noColorFlag   bool
	runtimeFlag   string
	noHistoryFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all test modules once and exit",
	Long: `Discovers test modules under the test root, starts the scripting
runtime, waits for its readiness signal and runs all modules in one
batch. Exits non-zero when any test fails or errors, or when fewer
assertions pass than the configured minimum.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

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
		orch := newOrchestrator(cmd, cfg, gate.New(), reg, env, "run")

		env.OnReady(orch.SignalReady)
		go func() {
			if err := env.WaitReady(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Runtime error:"), err)
				cancel()
			}
		}()

		files, err := discovery.Discover(cfg.TestRoot, cfg.Pattern, cfg.Suffix)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			os.Exit(ExitConfigError)
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No test modules found under %s\n", cfg.TestRoot)
			return
		}
		for _, f := range files {
			reg.Register(f.Ref, filepath.Join(cfg.TestRoot, f.Path))
		}

		outcome := orch.RequestRun(ctx, discovery.Refs(files), "Waiting for the runtime...")
		if err := outcome.Await(ctx); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", red(fmt.Sprintf("🔴 NAY! 🔴 %v", err)))
			os.Exit(ExitTestFailure)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", green("🟢 YAY! 🟢"))
	},
}

func init() {
	addStackFlags(runCmd)
}

// addStackFlags registers the flags shared by run and watch.
func addStackFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFlag, "config", getEnvString("WATCHCAT_CONFIG", ""), "Path to config file (env: WATCHCAT_CONFIG)")
	cmd.Flags().StringVar(&rootFlag, "root", getEnvString("WATCHCAT_ROOT", ""), "Test root directory (env: WATCHCAT_ROOT)")
	cmd.Flags().StringVar(&patternFlag, "pattern", getEnvString("WATCHCAT_PATTERN", ""), "Glob matched against paths under the test root (env: WATCHCAT_PATTERN)")
	cmd.Flags().StringVar(&suffixFlag, "suffix", getEnvString("WATCHCAT_SUFFIX", ""), "File suffix stripped when deriving module refs (env: WATCHCAT_SUFFIX)")
	cmd.Flags().IntVar(&minPassesFlag, "min-passes", getEnvInt("WATCHCAT_MIN_PASSES", 0), "Minimum passing assertions for a successful run (env: WATCHCAT_MIN_PASSES)")
	cmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("WATCHCAT_NO_COLOR", false), "Disable colored output (env: WATCHCAT_NO_COLOR)")
	cmd.Flags().StringVar(&runtimeFlag, "runtime", getEnvString("WATCHCAT_RUNTIME", ""), "Scripting runtime command (env: WATCHCAT_RUNTIME)")
	cmd.Flags().BoolVar(&noHistoryFlag, "no-history", getEnvBool("WATCHCAT_NO_HISTORY", false), "Skip recording runs to the history database (env: WATCHCAT_NO_HISTORY)")
}

// loadConfig reads the config file and layers flag overrides on top.
// Config errors are fatal.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configFlag)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
		os.Exit(ExitConfigError)
	}

	if rootFlag != "" {
		cfg.TestRoot = rootFlag
	}
	if patternFlag != "" {
		cfg.Pattern = patternFlag
	}
	if suffixFlag != "" {
		cfg.Suffix = suffixFlag
	}
	if minPassesFlag > 0 {
		cfg.MinPasses = uint64(minPassesFlag)
	}
	if runtimeFlag != "" {
		cfg.Runtime.Command = runtimeFlag
	}
	if noColorFlag {
		cfg.NoColor = true
	}
	if cfg.NoColor {
		color.NoColor = true
	}
	return cfg
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
