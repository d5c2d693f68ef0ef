// Package orchestrator drives one test run cycle end to end: it
// gates run requests behind the environment's readiness signal,
// reloads the requested modules, hands them to the test environment
// and wires the resulting event stream into counters, console
// narration and the run's outcome future.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/watchcat-dev/watchcat/packages/core/future"
	"github.com/watchcat-dev/watchcat/packages/core/gate"
	"github.com/watchcat-dev/watchcat/packages/core/session"
	"github.com/watchcat-dev/watchcat/packages/modref"
	"github.com/watchcat-dev/watchcat/packages/registry"
	"github.com/watchcat-dev/watchcat/packages/report"
)

// TestEnvironment is the external test library. RunTests dispatches
// the event stream for all refs in one batch to the listener,
// eventually emitting EndRun. A returned error is a failure outside
// the normal reporting flow (the run never reached its terminal
// event).
type TestEnvironment interface {
	RunTests(ctx context.Context, refs []modref.Ref, listener report.Listener) error
	// DefaultListener returns the environment's own default event
	// handling (assertion diffs and the like), or nil if it has none.
	// It is always registered first in the chain so default behavior
	// precedes the adapter's side effects.
	DefaultListener() report.Listener
}

// Orchestrator coordinates run requests for a single project.
type Orchestrator struct {
	gate      *gate.Gate
	registry  *registry.Registry
	env       TestEnvironment
	writer    io.Writer
	minPasses uint64
	extra     []report.Listener
	onSettled func(sess *session.Session)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWriter redirects console output, defaulting to stdout.
func WithWriter(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.writer = w
	}
}

// WithMinPasses overrides the minimum-pass threshold applied to every
// run's verdict.
func WithMinPasses(n uint64) Option {
	return func(o *Orchestrator) {
		o.minPasses = n
	}
}

// WithListeners appends extra listeners (stats collectors, history
// recorders) to every run's chain, after narration and before
// settlement.
func WithListeners(listeners ...report.Listener) Option {
	return func(o *Orchestrator) {
		o.extra = append(o.extra, listeners...)
	}
}

// WithSettledHook registers a callback invoked with the run's session
// once its outcome has settled, for history recording and
// notifications. A hung run (no terminal event, no error) never
// settles and never triggers the hook.
func WithSettledHook(fn func(sess *session.Session)) Option {
	return func(o *Orchestrator) {
		o.onSettled = fn
	}
}

// New creates an orchestrator over the given gate, registry and test
// environment.
func New(g *gate.Gate, reg *registry.Registry, env TestEnvironment, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:      g,
		registry:  reg,
		env:       env,
		writer:    os.Stdout,
		minPasses: session.DefaultMinPasses,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SignalReady flips the readiness gate, surfacing the message and
// draining any parked run requests in FIFO order.
func (o *Orchestrator) SignalReady(message string) {
	fmt.Fprintf(o.writer, "%s\n", message)
	o.gate.SignalReady(message)
}

// RequestRun creates a fresh session for the given modules and parks
// it on the readiness gate. It returns the run's outcome future
// without blocking: the run executes immediately when the gate is
// ready, otherwise waitingMessage is printed and the run waits its
// turn in the queue.
func (o *Orchestrator) RequestRun(ctx context.Context, refs []modref.Ref, waitingMessage string) *future.Future {
	sess := session.New(session.WithMinPasses(o.minPasses))

	if !o.gate.Ready() {
		fmt.Fprintf(o.writer, "%s\n", waitingMessage)
	}
	o.gate.Submit(func() {
		o.runModules(ctx, sess, refs)
	})
	return sess.Outcome()
}

// runModules executes one run cycle against a dedicated session. Any
// load failure or synchronous environment error rejects the session's
// outcome immediately, bypassing the threshold policy.
func (o *Orchestrator) runModules(ctx context.Context, sess *session.Session, refs []modref.Ref) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(o.writer, "%s\n", bold(fmt.Sprintf("Running %d test module(s)... (run %s)", len(refs), sess.ID())))

	sess.Reset()

	// Reload each module fresh so edits are picked up without a
	// process restart.
	for _, ref := range refs {
		if err := o.registry.Load(ref, registry.LoadOptions{ForceReload: true}); err != nil {
			fmt.Fprintf(o.writer, "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
			sess.Outcome().Reject(err)
			o.settled(sess)
			return
		}
	}

	chain := report.NewChain()
	if def := o.env.DefaultListener(); def != nil {
		chain.Append(def)
	}
	chain.Append(report.NewCounterListener(sess))
	chain.Append(report.NewConsoleListener(sess, report.WithWriter(o.writer)))
	for _, l := range o.extra {
		chain.Append(l)
	}
	chain.Append(report.NewSettleListener(sess))

	if err := o.env.RunTests(ctx, refs, chain); err != nil {
		fmt.Fprintf(o.writer, "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
		sess.Outcome().Reject(err)
	}
	o.settled(sess)
}

func (o *Orchestrator) settled(sess *session.Session) {
	if o.onSettled != nil && sess.Outcome().Settled() {
		o.onSettled(sess)
	}
}
