// Package scriptenv adapts an external scripting test runtime into
// the orchestrator's TestEnvironment and the registry's Loader.
//
// The runtime runs as a subprocess speaking newline-delimited JSON on
// its stdio. watchcat writes one op object per line to the runtime's
// stdin and reads event objects from its stdout:
//
//	→ {"op":"load","ref":"foo.bar-test","force":true}
//	← {"event":"loaded","ref":"foo.bar-test"}
//	← {"event":"load-error","ref":"foo.bar-test","message":"..."}
//
//	→ {"op":"run","refs":["foo.bar-test"]}
//	← {"event":"begin-test-unit","name":"foo.bar-test"}
//	← {"event":"pass","unit":"foo.bar-test","name":"...","message":"..."}
//	← {"event":"end-test-unit","name":"foo.bar-test"}
//	← {"event":"end-run","units":1,"ms":12}
//
// A {"event":"ready","message":"..."} line announces that the runtime
// is safe to run tests; {"event":"out","text":"..."} lines carry the
// runtime's raw output and are passed through verbatim.
package scriptenv

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/watchcat-dev/watchcat/packages/modref"
	"github.com/watchcat-dev/watchcat/packages/report"
)

// Env talks to one runtime subprocess.
type Env struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	in      io.Writer
	console io.Writer
	onReady func(message string)
	cmd     *exec.Cmd
}

// Option configures an Env.
type Option func(*Env)

// WithConsole redirects runtime pass-through output, defaulting to
// stdout.
func WithConsole(w io.Writer) Option {
	return func(e *Env) {
		e.console = w
	}
}

// New wires an Env over an existing transport: out is the runtime's
// stdout, in its stdin.
func New(out io.Reader, in io.Writer, opts ...Option) *Env {
	e := &Env{
		scanner: bufio.NewScanner(out),
		in:      in,
		console: os.Stdout,
	}
	e.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartCommand launches the runtime subprocess and wires an Env over
// its stdio. The runtime's stderr is passed through untouched.
func StartCommand(ctx context.Context, name string, args []string, opts ...Option) (*Env, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("runtime stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("runtime stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting runtime %q: %w", name, err)
	}

	e := New(stdout, stdin, opts...)
	e.cmd = cmd
	return e, nil
}

// Close terminates the runtime subprocess, if any.
func (e *Env) Close() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	_ = e.cmd.Process.Kill()
	return e.cmd.Wait()
}

// OnReady registers the callback invoked when the runtime announces
// readiness.
func (e *Env) OnReady(fn func(message string)) {
	e.onReady = fn
}

// WaitReady consumes events until the runtime's ready announcement,
// then invokes the OnReady callback with its message.
func (e *Env) WaitReady() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		line, err := e.next()
		if err != nil {
			return fmt.Errorf("waiting for runtime readiness: %w", err)
		}
		switch line.Get("event").String() {
		case "ready":
			if e.onReady != nil {
				e.onReady(line.Get("message").String())
			}
			return nil
		case "out":
			fmt.Fprintln(e.console, line.Get("text").String())
		}
	}
}

// Load asks the runtime to (re)load a module, blocking until the
// runtime confirms or reports a failure. It implements
// registry.Loader.
func (e *Env) Load(ref modref.Ref, force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.send(map[string]any{"op": "load", "ref": ref.String(), "force": force}); err != nil {
		return err
	}

	for {
		line, err := e.next()
		if err != nil {
			return err
		}
		switch line.Get("event").String() {
		case "loaded":
			return nil
		case "load-error":
			return fmt.Errorf("%s", line.Get("message").String())
		case "out":
			fmt.Fprintln(e.console, line.Get("text").String())
		}
	}
}

// RunTests submits the batch and dispatches the resulting event
// stream to the listener until the runtime's end-run event.
func (e *Env) RunTests(ctx context.Context, refs []modref.Ref, listener report.Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.String()
	}
	if err := e.send(map[string]any{"op": "run", "refs": names}); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := e.next()
		if err != nil {
			return fmt.Errorf("reading test events: %w", err)
		}

		info := report.Info{
			Unit:    line.Get("unit").String(),
			Name:    line.Get("name").String(),
			Message: line.Get("message").String(),
		}

		switch line.Get("event").String() {
		case "begin-test-unit":
			listener.BeginUnit(line.Get("name").String())
		case "end-test-unit":
			listener.EndUnit(line.Get("name").String())
		case "pass":
			listener.Pass(info)
		case "fail":
			listener.Fail(info)
		case "error":
			listener.Error(info)
		case "end-run":
			listener.EndRun(report.Summary{
				Units:    int(line.Get("units").Int()),
				Duration: time.Duration(line.Get("ms").Int()) * time.Millisecond,
			})
			return nil
		case "out":
			fmt.Fprintln(e.console, line.Get("text").String())
		}
	}
}

// DefaultListener passes the runtime's own per-event narration (diff
// text in the message field) through to the console, preserving the
// runtime's default reporting behavior ahead of any adapter side
// effects.
func (e *Env) DefaultListener() report.Listener {
	return &passthroughListener{console: e.console}
}

type passthroughListener struct {
	report.NopListener
	console io.Writer
}

func (l *passthroughListener) Fail(info report.Info) {
	if info.Message != "" {
		fmt.Fprintln(l.console, info.Message)
	}
}

func (l *passthroughListener) Error(info report.Info) {
	if info.Message != "" {
		fmt.Fprintln(l.console, info.Message)
	}
}

func (e *Env) send(op map[string]any) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("encoding op: %w", err)
	}
	if _, err := e.in.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing to runtime: %w", err)
	}
	return nil
}

// next reads the next well-formed JSON event line, skipping noise the
// runtime may print outside the protocol.
func (e *Env) next() (gjson.Result, error) {
	for e.scanner.Scan() {
		line := e.scanner.Text()
		if !gjson.Valid(line) {
			fmt.Fprintln(e.console, line)
			continue
		}
		return gjson.Parse(line), nil
	}
	if err := e.scanner.Err(); err != nil {
		return gjson.Result{}, err
	}
	return gjson.Result{}, io.EOF
}
