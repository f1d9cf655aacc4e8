// Package log implements a structured, leveled logger in the shape of
// go-ethereum's log package: a small Logger interface, a package-level root
// logger, and a terminal handler that colorizes output when attached to a
// TTY and falls back to plain logfmt otherwise.
//
// It adds one level beyond go-ethereum's own Trace/Debug/Info/Warn/Error/Crit
// ladder: Notice, sitting between Info and Warn. ContentDB uses it for
// reclaim/truncate cycles, a signal operators care about but that isn't a
// warning.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity, ordered the same way go-ethereum orders its
// own: lower values are noisier.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelNotice
	LevelWarn
	LevelError
	LevelCrit
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelNotice:
		return "NOTICE"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCrit:
		return "CRIT"
	default:
		return "???"
	}
}

// Logger is the interface ContentDB and its callers log through. A custom
// implementation can be installed with SetDefault, mirroring go-ethereum's
// TestSetDefaultCustomLogger convention.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Notice(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	Crit(msg string, ctx ...any)

	// With returns a Logger that prepends ctx to every subsequent record.
	With(ctx ...any) Logger
}

type handler interface {
	Log(r *record) error
}

type record struct {
	Time time.Time
	Lvl  Level
	Msg  string
	Ctx  []any
}

type logger struct {
	ctx []any
	h   *writeSync
}

type writeSync struct {
	mu sync.Mutex
	handler
}

func (w *writeSync) Log(r *record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler.Log(r)
}

func newLogger(h handler) *logger {
	return &logger{h: &writeSync{handler: h}}
}

func (l *logger) write(lvl Level, msg string, ctx []any) {
	all := ctx
	if len(l.ctx) > 0 {
		all = make([]any, 0, len(l.ctx)+len(ctx))
		all = append(all, l.ctx...)
		all = append(all, ctx...)
	}
	r := &record{Time: time.Now(), Lvl: lvl, Msg: msg, Ctx: all}
	_ = l.h.Log(r)
	if lvl == LevelCrit {
		fmt.Fprintln(os.Stderr, stack.Trace().TrimRuntime())
		os.Exit(2)
	}
}

func (l *logger) Trace(msg string, ctx ...any)  { l.write(LevelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...any)  { l.write(LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...any)   { l.write(LevelInfo, msg, ctx) }
func (l *logger) Notice(msg string, ctx ...any) { l.write(LevelNotice, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...any)   { l.write(LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...any)  { l.write(LevelError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...any)   { l.write(LevelCrit, msg, ctx) }

func (l *logger) With(ctx ...any) Logger {
	merged := make([]any, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &logger{ctx: merged, h: l.h}
}

var (
	rootMu sync.Mutex
	root   Logger = newLogger(newTerminalHandler(os.Stderr))
)

// Root returns the current default Logger.
func Root() Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return root
}

// SetDefault installs l as the default logger used by the package-level
// Trace/Debug/Info/Notice/Warn/Error/Crit functions.
func SetDefault(l Logger) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = l
}

// New creates a new Logger whose records all carry ctx.
func New(ctx ...any) Logger {
	return Root().With(ctx...)
}

func Trace(msg string, ctx ...any)  { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any)  { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)   { Root().Info(msg, ctx...) }
func Notice(msg string, ctx ...any) { Root().Notice(msg, ctx...) }
func Warn(msg string, ctx ...any)   { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any)  { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...any)   { Root().Crit(msg, ctx...) }

// terminalHandler writes logfmt records, colorized when out is a terminal.
type terminalHandler struct {
	out      io.Writer
	useColor bool
}

func newTerminalHandler(out *os.File) *terminalHandler {
	if out == nil {
		return &terminalHandler{out: io.Discard}
	}
	useColor := isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
	var w io.Writer = out
	if useColor {
		w = colorable.NewColorable(out)
	}
	return &terminalHandler{out: w, useColor: useColor}
}

var levelColor = map[Level]int{
	LevelTrace:  36, // cyan
	LevelDebug:  36,
	LevelInfo:   32, // green
	LevelNotice: 34, // blue
	LevelWarn:   33, // yellow
	LevelError:  31, // red
	LevelCrit:   35, // magenta
}

func (h *terminalHandler) Log(r *record) error {
	ts := r.Time.Format("2006-01-02T15:04:05-0700")
	lvl := r.Lvl.String()
	if h.useColor {
		lvl = fmt.Sprintf("\x1b[%dm%-6s\x1b[0m", levelColor[r.Lvl], r.Lvl.String())
	}
	line := fmt.Sprintf("%s [%s] %s", ts, lvl, r.Msg)
	for i := 0; i+1 < len(r.Ctx); i += 2 {
		line += fmt.Sprintf(" %v=%v", r.Ctx[i], formatValue(r.Ctx[i+1]))
	}
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case error:
		return fmt.Sprintf("%q", x.Error())
	default:
		return fmt.Sprintf("%v", x)
	}
}
