package watch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/watchcat-dev/watchcat/packages/core/future"
	"github.com/watchcat-dev/watchcat/packages/modref"
	"github.com/watchcat-dev/watchcat/packages/registry"
)

// syncBuffer is a goroutine-safe bytes.Buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// stubRunner records run requests and settles each returned future
// according to outcome.
type stubRunner struct {
	mu       sync.Mutex
	requests [][]modref.Ref
	outcome  error // nil resolves, non-nil rejects
}

func (r *stubRunner) RequestRun(ctx context.Context, refs []modref.Ref, waitingMessage string) *future.Future {
	r.mu.Lock()
	r.requests = append(r.requests, refs)
	r.mu.Unlock()

	f := future.New()
	if r.outcome != nil {
		f.Reject(r.outcome)
	} else {
		f.Resolve()
	}
	return f
}

func (r *stubRunner) requestCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

type recordingLoader struct {
	mu    sync.Mutex
	loads []modref.Ref
}

func (l *recordingLoader) Load(ref modref.Ref, force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, ref)
	return nil
}

func (l *recordingLoader) loaded() []modref.Ref {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]modref.Ref(nil), l.loads...)
}

func writeTestFile(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(";; test"), 0o644))
}

func newWatcher(t *testing.T, runner Runner, loader registry.Loader, root string, cycles chan struct{}) (*Watcher, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	reg := registry.New(loader)
	w := New(runner, reg, root, "**/*_test.cljs", ".cljs",
		WithWriter(out),
		WithDebounce(20*time.Millisecond),
		WithRateLimit(rate.NewLimiter(rate.Inf, 1)),
		WithCycleHook(func() { cycles <- struct{}{} }),
	)
	return w, out
}

func waitCycle(t *testing.T, cycles chan struct{}) {
	t.Helper()
	select {
	case <-cycles:
	case <-time.After(3 * time.Second):
		t.Fatal("watch cycle never completed")
	}
}

func TestWatcher_InitialRunAtStart(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "foo/bar_baz_test.cljs")

	runner := &stubRunner{}
	cycles := make(chan struct{}, 10)
	w, out := newWatcher(t, runner, &recordingLoader{}, root, cycles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := w.Start(ctx, "Waiting for the runtime...")
	require.NoError(t, err)
	waitCycle(t, cycles)

	runner.mu.Lock()
	require.Len(t, runner.requests, 1)
	assert.Equal(t, []modref.Ref{"foo.bar-baz-test"}, runner.requests[0])
	runner.mu.Unlock()

	assert.Contains(t, out.String(), "Watcher started")
	assert.Contains(t, out.String(), "🟢 YAY! 🟢")
	assert.Contains(t, out.String(), "Waiting for changes...")
	assert.False(t, f.Settled(), "watch future must never settle")
}

func TestWatcher_ChangeTriggersReloadAndRun(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "foo/bar_baz_test.cljs")

	runner := &stubRunner{}
	loader := &recordingLoader{}
	cycles := make(chan struct{}, 10)
	w, _ := newWatcher(t, runner, loader, root, cycles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := w.Start(ctx, "waiting")
	require.NoError(t, err)
	waitCycle(t, cycles) // initial run

	writeTestFile(t, root, "foo/bar_baz_test.cljs") // touch
	waitCycle(t, cycles)

	assert.GreaterOrEqual(t, runner.requestCount(), 2)
	assert.Contains(t, loader.loaded(), modref.Ref("foo.bar-baz-test"),
		"changed module must be reloaded before the run")
}

func TestWatcher_NewFileIsDiscovered(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "foo/bar_baz_test.cljs")

	runner := &stubRunner{}
	cycles := make(chan struct{}, 10)
	w, _ := newWatcher(t, runner, &recordingLoader{}, root, cycles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := w.Start(ctx, "waiting")
	require.NoError(t, err)
	waitCycle(t, cycles)

	writeTestFile(t, root, "foo/fresh_test.cljs")
	waitCycle(t, cycles)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	last := runner.requests[len(runner.requests)-1]
	assert.Contains(t, last, modref.Ref("foo.fresh-test"))
}

func TestWatcher_DeleteDoesNotReload(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "foo/doomed_test.cljs")
	writeTestFile(t, root, "foo/keeper_test.cljs")

	runner := &stubRunner{}
	loader := &recordingLoader{}
	cycles := make(chan struct{}, 10)
	w, _ := newWatcher(t, runner, loader, root, cycles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := w.Start(ctx, "waiting")
	require.NoError(t, err)
	waitCycle(t, cycles)

	require.NoError(t, os.Remove(filepath.Join(root, "foo", "doomed_test.cljs")))
	waitCycle(t, cycles)

	assert.NotContains(t, loader.loaded(), modref.Ref("foo.doomed-test"),
		"deleted modules must not be reloaded")

	runner.mu.Lock()
	defer runner.mu.Unlock()
	last := runner.requests[len(runner.requests)-1]
	assert.NotContains(t, last, modref.Ref("foo.doomed-test"))
	assert.Contains(t, last, modref.Ref("foo.keeper-test"))
}

func TestWatcher_FailureEmitsAlertWithReason(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "foo/bar_test.cljs")

	runner := &stubRunner{outcome: errors.New("some tests failed or errored")}
	cycles := make(chan struct{}, 10)
	w, out := newWatcher(t, runner, &recordingLoader{}, root, cycles)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := w.Start(ctx, "waiting")
	require.NoError(t, err)
	waitCycle(t, cycles)

	s := out.String()
	assert.Contains(t, s, "🔴 NAY! 🔴 some tests failed or errored")
	assert.Contains(t, s, "\a", "failure must ring the bell")
	assert.Contains(t, s, "Waiting for changes...")
}
