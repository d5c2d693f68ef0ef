// Package session holds the per-run state of one test run cycle:
// aggregated pass/fail/error counters, the run's outcome future and
// the threshold policy that converts final counts into a verdict.
//
// A fresh Session is created for every run, so counts from one run
// can never leak into another.
package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/watchcat-dev/watchcat/packages/core/future"
)

// DefaultMinPasses is the minimum number of passing assertions a run
// needs before zero failures counts as success. It guards against the
// degenerate "zero tests actually ran" case looking green.
const DefaultMinPasses = 2

// Kind classifies a terminal assertion event.
type Kind int

const (
	// Pass counts a passing assertion
	Pass Kind = iota
	// Fail counts a failing assertion
	Fail
	// Error counts an assertion that errored rather than failed
	Error
)

// Counts is a by-value snapshot of the run's aggregate counters.
type Counts struct {
	Pass  uint64
	Fail  uint64
	Error uint64
}

// Total returns the number of terminal assertion events recorded.
func (c Counts) Total() uint64 {
	return c.Pass + c.Fail + c.Error
}

// Session is the state of a single run cycle.
type Session struct {
	id        string
	minPasses uint64
	started   time.Time

	pass   atomic.Uint64
	fail   atomic.Uint64
	errcnt atomic.Uint64

	outcome *future.Future
}

// Option configures a Session.
type Option func(*Session)

// WithMinPasses overrides the minimum-pass threshold.
func WithMinPasses(n uint64) Option {
	return func(s *Session) {
		s.minPasses = n
	}
}

// New creates a session with a fresh pending outcome future and
// zeroed counters.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		minPasses: DefaultMinPasses,
		started:   time.Now(),
		outcome:   future.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the unique identifier of this run.
func (s *Session) ID() string {
	return s.id
}

// Started returns when the session was created.
func (s *Session) Started() time.Time {
	return s.started
}

// Outcome returns the run's outcome future.
func (s *Session) Outcome() *future.Future {
	return s.outcome
}

// MinPasses returns the configured minimum-pass threshold.
func (s *Session) MinPasses() uint64 {
	return s.minPasses
}

// Reset zeroes the counters. Called once per run, before any test
// executes.
func (s *Session) Reset() {
	s.pass.Store(0)
	s.fail.Store(0)
	s.errcnt.Store(0)
}

// Increment records one terminal assertion event of the given kind.
func (s *Session) Increment(kind Kind) {
	switch kind {
	case Pass:
		s.pass.Add(1)
	case Fail:
		s.fail.Add(1)
	case Error:
		s.errcnt.Add(1)
	}
}

// Snapshot returns the current counts by value.
func (s *Session) Snapshot() Counts {
	return Counts{
		Pass:  s.pass.Load(),
		Fail:  s.fail.Load(),
		Error: s.errcnt.Load(),
	}
}

// Verdict applies the threshold policy to the final counts and
// settles the outcome future: any failure or error rejects, fewer
// passes than the threshold rejects, otherwise the run resolves.
// Settling is one-shot, so a verdict after an earlier rejection (for
// example a load error) leaves the first outcome untouched.
func (s *Session) Verdict() {
	c := s.Snapshot()
	switch {
	case c.Fail+c.Error > 0:
		s.outcome.Reject(fmt.Errorf("some tests failed or errored"))
	case c.Pass < s.minPasses:
		s.outcome.Reject(fmt.Errorf("fewer than %d assertions passed (got %d)", s.minPasses, c.Pass))
	default:
		s.outcome.Resolve()
	}
}
