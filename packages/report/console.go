package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/watchcat-dev/watchcat/packages/core/session"
)

// ConsoleListener narrates the event stream to a terminal: a visual
// delimiter around each test unit, a glyph per assertion and a final
// counts line. The glyphs are part of the observable contract that
// downstream log scrapers key off, so they are not configurable.
type ConsoleListener struct {
	writer  io.Writer
	session *session.Session
}

// ConsoleOption configures a ConsoleListener.
type ConsoleOption func(*ConsoleListener)

// WithWriter redirects console narration, defaulting to stdout.
func WithWriter(w io.Writer) ConsoleOption {
	return func(l *ConsoleListener) {
		l.writer = w
	}
}

// WithNoColor disables ANSI colors globally.
func WithNoColor(nc bool) ConsoleOption {
	return func(l *ConsoleListener) {
		if nc {
			color.NoColor = true
		}
	}
}

// NewConsoleListener creates a console narrator over sess.
func NewConsoleListener(sess *session.Session, opts ...ConsoleOption) *ConsoleListener {
	l := &ConsoleListener{
		writer:  os.Stdout,
		session: sess,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *ConsoleListener) BeginUnit(name string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(l.writer, "%s\n", bold("=== "+name+" ==="))
}

func (l *ConsoleListener) EndUnit(name string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(l.writer, "%s\n", bold("=== end "+name+" ==="))
}

func (l *ConsoleListener) Pass(info Info) {
	fmt.Fprintf(l.writer, "✅ %s\n", info.Name)
}

func (l *ConsoleListener) Fail(info Info) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(l.writer, "❌ %s\n", red(info.Name))
}

func (l *ConsoleListener) Error(info Info) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(l.writer, "🚫 %s\n", red(info.Name))
}

func (l *ConsoleListener) EndRun(summary Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	c := l.session.Snapshot()
	fmt.Fprintf(l.writer, "%s, %s, %s\n",
		green(fmt.Sprintf("%d passed", c.Pass)),
		red(fmt.Sprintf("%d failed", c.Fail)),
		yellow(fmt.Sprintf("%d errored", c.Error)))
}
