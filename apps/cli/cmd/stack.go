package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/watchcat-dev/watchcat/packages/config"
	"github.com/watchcat-dev/watchcat/packages/core/gate"
	"github.com/watchcat-dev/watchcat/packages/core/orchestrator"
	"github.com/watchcat-dev/watchcat/packages/core/session"
	"github.com/watchcat-dev/watchcat/packages/history"
	"github.com/watchcat-dev/watchcat/packages/notify"
	"github.com/watchcat-dev/watchcat/packages/registry"
	"github.com/watchcat-dev/watchcat/packages/stats"
)

// newOrchestrator assembles the run pipeline shared by the run and
// watch commands: stats collection on every run plus a settled hook
// that records history and pushes notifications. trigger tags history
// rows as "run" or "watch".
func newOrchestrator(cmd *cobra.Command, cfg *config.Config, g *gate.Gate, reg *registry.Registry, env orchestrator.TestEnvironment, trigger string) *orchestrator.Orchestrator {
	out := cmd.OutOrStdout()

	var store *history.Store
	if !noHistoryFlag && cfg.HistoryPath != "" {
		var err error
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			// History is best-effort; a broken database must not block runs.
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgYellow).Sprint("History disabled:"), err)
			store = nil
		}
	}

	mgr := notifyManager(cfg)
	collector := stats.NewCollector()

	return orchestrator.New(g, reg, env,
		orchestrator.WithWriter(out),
		orchestrator.WithMinPasses(cfg.MinPasses),
		orchestrator.WithListeners(collector),
		orchestrator.WithSettledHook(settledHook(trigger, store, mgr, collector, out)),
	)
}

// notifyManager builds the webhook fan-out from config, or nil when no
// webhook is configured.
func notifyManager(cfg *config.Config) *notify.Manager {
	if cfg.Notify == nil {
		return nil
	}
	on := notify.NotifyOn(cfg.Notify.On)
	if on == "" {
		on = notify.NotifyFailure
	}

	mgr := notify.NewManager(on)
	wired := false
	if cfg.Notify.SlackWebhook != "" {
		var opts []notify.SlackOption
		if cfg.Notify.SlackChannel != "" {
			opts = append(opts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
		}
		mgr.AddNotifier(notify.NewSlackNotifier(cfg.Notify.SlackWebhook, opts...))
		wired = true
	}
	if cfg.Notify.TeamsWebhook != "" {
		mgr.AddNotifier(notify.NewTeamsNotifier(cfg.Notify.TeamsWebhook))
		wired = true
	}
	if !wired {
		return nil
	}
	return mgr
}

// settledHook runs after each settled outcome: print unit-time
// percentiles, persist the run, notify. All three are best-effort.
func settledHook(trigger string, store *history.Store, mgr *notify.Manager, collector *stats.Collector, out io.Writer) func(*session.Session) {
	return func(sess *session.Session) {
		finished := time.Now()
		counts := sess.Snapshot()
		_, err := sess.Outcome().Result()
		reason := ""
		if err != nil {
			reason = err.Error()
		}

		if p := collector.Summary(); p.Units > 0 {
			fmt.Fprintf(out, "Unit times: p50 %s, p95 %s, p99 %s, max %s\n", p.P50, p.P95, p.P99, p.Max)
		}
		collector.Reset()

		if store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			recErr := store.Record(ctx, history.Entry{
				RunID:      sess.ID(),
				Trigger:    trigger,
				StartedAt:  sess.Started(),
				FinishedAt: finished,
				Pass:       counts.Pass,
				Fail:       counts.Fail,
				Error:      counts.Error,
				Resolved:   err == nil,
				Reason:     reason,
			})
			if recErr != nil {
				fmt.Fprintf(out, "%s %v\n", color.New(color.FgYellow).Sprint("History error:"), recErr)
			}
		}

		if mgr != nil {
			notifyErr := mgr.Notify(&notify.CycleSummary{
				RunID:    sess.ID(),
				Trigger:  trigger,
				Pass:     counts.Pass,
				Fail:     counts.Fail,
				Error:    counts.Error,
				Duration: finished.Sub(sess.Started()),
				Resolved: err == nil,
				Reason:   reason,
			})
			if notifyErr != nil {
				fmt.Fprintf(out, "%s %v\n", color.New(color.FgYellow).Sprint("Notify error:"), notifyErr)
			}
		}
	}
}
