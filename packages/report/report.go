// Package report bridges the scripting environment's test event
// stream into counter updates, console narration and run settlement.
//
// Instead of patching the environment's default event handlers, the
// adapter composes listeners into a chain invoked in registration
// order. The environment's own default listener is registered first,
// so its normal behavior (printing assertion diffs and the like)
// always runs before this package's side effects.
package report

import (
	"time"

	"github.com/watchcat-dev/watchcat/packages/core/session"
)

// Info describes one terminal assertion event.
type Info struct {
	// Unit is the test unit (namespace/var) the assertion belongs to.
	Unit string
	// Name identifies the assertion within the unit.
	Name string
	// Message is the environment's own description, e.g. a diff.
	Message string
}

// Summary describes the end of a run as reported by the environment.
type Summary struct {
	Units    int
	Duration time.Duration
}

// Listener consumes the per-test and per-run lifecycle events emitted
// by the test environment.
type Listener interface {
	BeginUnit(name string)
	EndUnit(name string)
	Pass(info Info)
	Fail(info Info)
	Error(info Info)
	EndRun(summary Summary)
}

// Chain fans events out to listeners in registration order.
type Chain struct {
	listeners []Listener
}

// NewChain builds a chain. Pass the environment's default listener
// first so default handling precedes adapter side effects.
func NewChain(listeners ...Listener) *Chain {
	return &Chain{listeners: listeners}
}

// Append adds a listener to the end of the chain.
func (c *Chain) Append(l Listener) {
	c.listeners = append(c.listeners, l)
}

func (c *Chain) BeginUnit(name string) {
	for _, l := range c.listeners {
		l.BeginUnit(name)
	}
}

func (c *Chain) EndUnit(name string) {
	for _, l := range c.listeners {
		l.EndUnit(name)
	}
}

func (c *Chain) Pass(info Info) {
	for _, l := range c.listeners {
		l.Pass(info)
	}
}

func (c *Chain) Fail(info Info) {
	for _, l := range c.listeners {
		l.Fail(info)
	}
}

func (c *Chain) Error(info Info) {
	for _, l := range c.listeners {
		l.Error(info)
	}
}

func (c *Chain) EndRun(summary Summary) {
	for _, l := range c.listeners {
		l.EndRun(summary)
	}
}

// NopListener implements Listener with no-ops, for embedding.
type NopListener struct{}

func (NopListener) BeginUnit(string) {}
func (NopListener) EndUnit(string)   {}
func (NopListener) Pass(Info)        {}
func (NopListener) Fail(Info)        {}
func (NopListener) Error(Info)       {}
func (NopListener) EndRun(Summary)   {}

// CounterListener feeds terminal assertion events into the session's
// counters.
type CounterListener struct {
	NopListener
	session *session.Session
}

// NewCounterListener returns a listener that increments sess.
func NewCounterListener(sess *session.Session) *CounterListener {
	return &CounterListener{session: sess}
}

func (l *CounterListener) Pass(Info)  { l.session.Increment(session.Pass) }
func (l *CounterListener) Fail(Info)  { l.session.Increment(session.Fail) }
func (l *CounterListener) Error(Info) { l.session.Increment(session.Error) }

// SettleListener applies the threshold policy at end-run and settles
// the session's outcome future. It must sit after the CounterListener
// in the chain so the final snapshot is complete when the verdict is
// taken.
type SettleListener struct {
	NopListener
	session *session.Session
}

// NewSettleListener returns a listener that settles sess at end-run.
func NewSettleListener(sess *session.Session) *SettleListener {
	return &SettleListener{session: sess}
}

func (l *SettleListener) EndRun(Summary) { l.session.Verdict() }
