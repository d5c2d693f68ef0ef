// Package watch re-triggers test runs whenever source files change.
//
// One watch cycle is: detect change → reload the changed module (with
// transitive invalidation) → re-discover test modules → request a run
// → report the settlement → announce idleness. The loop never
// terminates on its own.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/watchcat-dev/watchcat/packages/core/future"
	"github.com/watchcat-dev/watchcat/packages/discovery"
	"github.com/watchcat-dev/watchcat/packages/modref"
	"github.com/watchcat-dev/watchcat/packages/registry"
)

// DefaultDebounce is the delay applied after a burst of file events
// before a cycle starts.
const DefaultDebounce = 300 * time.Millisecond

// Runner requests test runs; the orchestrator implements it.
type Runner interface {
	RequestRun(ctx context.Context, refs []modref.Ref, waitingMessage string) *future.Future
}

// Watcher drives the watch loop for one project.
type Watcher struct {
	runner   Runner
	registry *registry.Registry
	root     string
	pattern  string
	suffix   string
	debounce time.Duration
	limiter  *rate.Limiter
	writer   io.Writer
	onCycle  func()

	mu      sync.Mutex
	pending map[modref.Ref]bool
	timer   *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the event debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWriter redirects console output, defaulting to stdout.
func WithWriter(out io.Writer) Option {
	return func(w *Watcher) {
		w.writer = out
	}
}

// WithRateLimit caps how often cycles may start.
func WithRateLimit(l *rate.Limiter) Option {
	return func(w *Watcher) {
		w.limiter = l
	}
}

// WithCycleHook registers a callback invoked after every settled
// cycle, for tests and for wiring cycle-complete side effects.
func WithCycleHook(fn func()) Option {
	return func(w *Watcher) {
		w.onCycle = fn
	}
}

// New creates a watcher over root. Discovered modules are registered
// in reg so the orchestrator can reload them.
func New(runner Runner, reg *registry.Registry, root, pattern, suffix string, opts ...Option) *Watcher {
	w := &Watcher{
		runner:   runner,
		registry: reg,
		root:     root,
		pattern:  pattern,
		suffix:   suffix,
		debounce: DefaultDebounce,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 2),
		writer:   os.Stdout,
		pending:  make(map[modref.Ref]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start subscribes to file-system notifications, triggers an initial
// run immediately and returns a never-settling future that keeps the
// host context alive for as long as the loop runs. The loop stops
// only when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context, waitingMessage string) (*future.Future, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.addRecursive(fsw, w.root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	// Synthetic watcher-started cycle, not tied to a real path.
	go w.cycle(ctx, "", waitingMessage)

	go w.loop(ctx, fsw, waitingMessage)
	return future.Never(), nil
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, waitingMessage string) {
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}

			// New directories need their own watch.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fsw, event.Name)
					continue
				}
			}

			ref, ok := discovery.RefForPath(event.Name, w.root, w.suffix)
			if !ok {
				continue
			}

			// Deleted modules are not reloaded; the re-discovery pass
			// simply stops finding them.
			reload := !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename)
			w.schedule(ctx, ref, reload, waitingMessage)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(w.writer, "%s %v\n", color.New(color.FgRed).Sprint("Watcher error:"), err)
		}
	}
}

// schedule debounces bursts of events into one cycle. Refs needing a
// reload accumulate until the timer fires.
func (w *Watcher) schedule(ctx context.Context, ref modref.Ref, reload bool, waitingMessage string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if reload {
		w.pending[ref] = true
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		refs := make([]modref.Ref, 0, len(w.pending))
		for r := range w.pending {
			refs = append(refs, r)
		}
		w.pending = make(map[modref.Ref]bool)
		w.mu.Unlock()

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		for _, r := range refs {
			if err := w.registry.Load(r, registry.LoadOptions{ForceReload: true, Transitive: true}); err != nil {
				fmt.Fprintf(w.writer, "%s %v\n", color.New(color.FgRed).Sprint("Reload error:"), err)
			}
		}
		w.cycle(ctx, strings.Join(refStrings(refs), ", "), waitingMessage)
	})
}

// cycle re-discovers the test modules, requests a run and narrates
// the settlement. changed is empty for the synthetic initial cycle.
func (w *Watcher) cycle(ctx context.Context, changed, waitingMessage string) {
	if changed == "" {
		fmt.Fprintf(w.writer, "Watcher started\n")
	} else {
		fmt.Fprintf(w.writer, "Changed: %s\n", changed)
	}

	files, err := discovery.Discover(w.root, w.pattern, w.suffix)
	if err != nil {
		fmt.Fprintf(w.writer, "%s %v\n", color.New(color.FgRed).Sprint("Discovery error:"), err)
		w.idle()
		return
	}
	for _, f := range files {
		w.registry.Register(f.Ref, filepath.Join(w.root, f.Path))
	}

	outcome := w.runner.RequestRun(ctx, discovery.Refs(files), waitingMessage)

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-outcome.Done():
		}

		if _, err := outcome.Result(); err != nil {
			red := color.New(color.FgRed).SprintFunc()
			// The bell makes failures audible in a background terminal.
			fmt.Fprintf(w.writer, "%s\a\n", red(fmt.Sprintf("🔴 NAY! 🔴 %v", err)))
		} else {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(w.writer, "%s\n", green("🟢 YAY! 🟢"))
		}
		w.idle()
		if w.onCycle != nil {
			w.onCycle()
		}
	}()
}

func (w *Watcher) idle() {
	fmt.Fprintf(w.writer, "Waiting for changes...\n")
}

func refStrings(refs []modref.Ref) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}
