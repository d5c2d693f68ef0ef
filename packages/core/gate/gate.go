// Package gate decouples "caller wants to run tests" from
// "environment says it is safe to run tests now".
//
// Run requests submitted before the environment signals readiness are
// parked in a FIFO queue. Once readiness flips the queue is drained in
// submission order, one run at a time, and stays drained: requests
// submitted afterwards also execute serially through the same queue,
// so two runs can never be in flight at once.
package gate

import "sync"

// Gate is the readiness gate plus the pending-run queue.
type Gate struct {
	mu       sync.Mutex
	ready    bool
	message  string
	queue    []func()
	draining bool
}

// New returns a gate in the NotReady state.
func New() *Gate {
	return &Gate{}
}

// Ready reports whether the readiness signal has been received.
func (g *Gate) Ready() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Message returns the human-readable message carried by the readiness
// signal, or "" while NotReady.
func (g *Gate) Message() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message
}

// Pending returns the number of queued run requests.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Submit parks a run request. If the gate is ready it starts draining
// immediately; the request still goes through the queue so it runs
// after any request already in flight. Submit never blocks on the run
// itself. It returns true if the request had to wait for readiness.
func (g *Gate) Submit(run func()) (parked bool) {
	g.mu.Lock()
	g.queue = append(g.queue, run)
	if !g.ready {
		g.mu.Unlock()
		return true
	}
	start := !g.draining
	if start {
		g.draining = true
	}
	g.mu.Unlock()

	if start {
		go g.drain()
	}
	return false
}

// SignalReady transitions the gate NotReady → Ready and drains all
// queued requests in FIFO order. There is no reverse transition;
// calling it again is a no-op.
func (g *Gate) SignalReady(message string) {
	g.mu.Lock()
	if g.ready {
		g.mu.Unlock()
		return
	}
	g.ready = true
	g.message = message
	start := len(g.queue) > 0 && !g.draining
	if start {
		g.draining = true
	}
	g.mu.Unlock()

	if start {
		go g.drain()
	}
}

func (g *Gate) drain() {
	for {
		g.mu.Lock()
		if len(g.queue) == 0 {
			g.draining = false
			g.mu.Unlock()
			return
		}
		run := g.queue[0]
		g.queue = g.queue[1:]
		g.mu.Unlock()

		run()
	}
}
