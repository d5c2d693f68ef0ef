package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchcat-dev/watchcat/packages/core/future"
	"github.com/watchcat-dev/watchcat/packages/core/session"
)

// traceListener records which events it saw and tags them with its id
// into a shared trace, so chain ordering can be asserted.
type traceListener struct {
	NopListener
	id    string
	trace *[]string
}

func (l *traceListener) Pass(Info)       { *l.trace = append(*l.trace, l.id+":pass") }
func (l *traceListener) EndRun(Summary)  { *l.trace = append(*l.trace, l.id+":end-run") }
func (l *traceListener) BeginUnit(string) { *l.trace = append(*l.trace, l.id+":begin") }

func TestChain_InvokesListenersInRegistrationOrder(t *testing.T) {
	var trace []string
	defaultListener := &traceListener{id: "default", trace: &trace}
	adapter := &traceListener{id: "adapter", trace: &trace}

	chain := NewChain(defaultListener, adapter)
	chain.BeginUnit("foo.bar-test")
	chain.Pass(Info{Name: "works"})
	chain.EndRun(Summary{})

	assert.Equal(t, []string{
		"default:begin", "adapter:begin",
		"default:pass", "adapter:pass",
		"default:end-run", "adapter:end-run",
	}, trace)
}

func TestCounterListener_FeedsSession(t *testing.T) {
	sess := session.New()
	l := NewCounterListener(sess)

	l.Pass(Info{})
	l.Pass(Info{})
	l.Fail(Info{})
	l.Error(Info{})

	c := sess.Snapshot()
	assert.Equal(t, uint64(2), c.Pass)
	assert.Equal(t, uint64(1), c.Fail)
	assert.Equal(t, uint64(1), c.Error)
}

func TestSettleListener_AppliesThresholdPolicyAtEndRun(t *testing.T) {
	t.Run("resolves when enough passes and nothing failed", func(t *testing.T) {
		sess := session.New()
		chain := NewChain(NewCounterListener(sess), NewSettleListener(sess))

		for i := 0; i < 3; i++ {
			chain.Pass(Info{})
		}
		assert.False(t, sess.Outcome().Settled(), "must not settle before end-run")

		chain.EndRun(Summary{Units: 1, Duration: time.Millisecond})

		state, err := sess.Outcome().Result()
		assert.Equal(t, future.Resolved, state)
		assert.NoError(t, err)
	})

	t.Run("rejects on mixed pass and fail", func(t *testing.T) {
		sess := session.New()
		chain := NewChain(NewCounterListener(sess), NewSettleListener(sess))

		chain.Pass(Info{})
		chain.Fail(Info{})
		chain.EndRun(Summary{})

		state, err := sess.Outcome().Result()
		assert.Equal(t, future.Rejected, state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "some tests failed or errored")
	})

	t.Run("rejects a run where nothing ran", func(t *testing.T) {
		sess := session.New()
		chain := NewChain(NewCounterListener(sess), NewSettleListener(sess))

		chain.EndRun(Summary{})

		state, err := sess.Outcome().Result()
		assert.Equal(t, future.Rejected, state)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fewer than 2 assertions passed (got 0)")
	})
}

func TestConsoleListener_Narration(t *testing.T) {
	var buf bytes.Buffer
	sess := session.New()
	l := NewConsoleListener(sess, WithWriter(&buf), WithNoColor(true))

	l.BeginUnit("foo.bar-test")
	l.Pass(Info{Name: "addition works"})
	sess.Increment(session.Pass)
	l.Fail(Info{Name: "subtraction works"})
	sess.Increment(session.Fail)
	l.Error(Info{Name: "division works"})
	sess.Increment(session.Error)
	l.EndUnit("foo.bar-test")
	l.EndRun(Summary{})

	out := buf.String()
	assert.Contains(t, out, "=== foo.bar-test ===")
	assert.Contains(t, out, "✅ addition works")
	assert.Contains(t, out, "❌ subtraction works")
	assert.Contains(t, out, "🚫 division works")
	assert.Contains(t, out, "=== end foo.bar-test ===")
	assert.Contains(t, out, "1 passed, 1 failed, 1 errored")
}
