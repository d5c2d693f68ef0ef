// Package future provides a one-shot, settle-once result cell for a
// single test run cycle.
package future

import (
	"context"
	"sync"
)

// State represents the settlement state of a Future.
type State int

const (
	// Pending means the future has not been settled yet
	Pending State = iota
	// Resolved means the run succeeded
	Resolved
	// Rejected means the run failed; Err carries the reason
	Rejected
)

// Future is a single-assignment result cell. It transitions from
// Pending to Resolved or Rejected at most once; later settlement
// attempts are silently ignored.
type Future struct {
	once  sync.Once
	done  chan struct{}
	mu    sync.RWMutex
	state State
	err   error
}

// New returns a pending future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Never returns a future that never settles. Watch mode uses it to
// keep its host context alive indefinitely.
func Never() *Future {
	return New()
}

// Resolve settles the future successfully. A no-op if already settled.
func (f *Future) Resolve() {
	f.settle(Resolved, nil)
}

// Reject settles the future with a failure reason. A no-op if already
// settled.
func (f *Future) Reject(err error) {
	f.settle(Rejected, err)
}

func (f *Future) settle(state State, err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.state = state
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

// Done returns a channel that is closed when the future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Result returns the recorded outcome. Only meaningful after Done is
// closed; before settlement it reports Pending.
func (f *Future) Result() (State, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state, f.err
}

// Await blocks until the future settles or ctx is cancelled. On
// success it returns nil; on rejection it returns the recorded reason.
func (f *Future) Await(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		_, err := f.Result()
		return err
	}
}
