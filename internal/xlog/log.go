// Package xlog is a small structured logger in the go-ethereum-style
// key/value call shape (log.Info("msg", "key", val, ...)), backed by
// log/slog.
package xlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger matches the go-ethereum-style call shape: one message string
// followed by an even number of key/value pairs.
type Logger struct {
	l *slog.Logger
}

// Level mirrors the --log-level flag's accepted values.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "crit":
		return LevelCrit, nil
	case "error":
		return LevelError, nil
	case "warn":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func (lv Level) slogLevel() slog.Level {
	switch lv {
	case LevelCrit, LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelDebug - 4
	}
}

// New builds a Logger that writes colorized, human-readable lines to a
// terminal and plain lines otherwise (fatih/color + mattn/go-isatty +
// mattn/go-colorable).
func New(w io.Writer, level Level) *Logger {
	out := w
	useColor := false
	if f, ok := w.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			out = colorable.NewColorable(f)
			useColor = true
		}
	}
	handler := &terminalHandler{out: out, color: useColor, minLvl: level.slogLevel()}
	return &Logger{l: slog.New(handler)}
}

var root = New(os.Stderr, LevelInfo)

// SetRoot replaces the process-wide default logger, invoked once from
// cmd/elmux after flags are parsed.
func SetRoot(l *Logger) { root = l }

func Root() *Logger { return root }

func Trace(msg string, kv ...interface{}) { root.Trace(msg, kv...) }
func Debug(msg string, kv ...interface{}) { root.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { root.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { root.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { root.Error(msg, kv...) }

// Crit logs at error level and terminates the process, the
// go-ethereum log.Crit startup-failure idiom.
func Crit(msg string, kv ...interface{}) {
	root.Error(msg, kv...)
	os.Exit(1)
}

func (lg *Logger) Trace(msg string, kv ...interface{}) {
	lg.l.Log(context.Background(), slog.LevelDebug-4, msg, kv...)
}
func (lg *Logger) Debug(msg string, kv ...interface{}) {
	lg.l.Log(context.Background(), slog.LevelDebug, msg, kv...)
}
func (lg *Logger) Info(msg string, kv ...interface{}) {
	lg.l.Log(context.Background(), slog.LevelInfo, msg, kv...)
}
func (lg *Logger) Warn(msg string, kv ...interface{}) {
	lg.l.Log(context.Background(), slog.LevelWarn, msg, kv...)
}
func (lg *Logger) Error(msg string, kv ...interface{}) {
	lg.l.Log(context.Background(), slog.LevelError, msg, kv...)
}

// terminalHandler is a minimal slog.Handler rendering
// "LVL[time] msg key=val ..." lines, colorized when attached to a TTY.
type terminalHandler struct {
	out    io.Writer
	color  bool
	minLvl slog.Level
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.minLvl
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	lvl := levelName(r.Level)
	if h.color {
		lvl = colorFor(r.Level)(lvl)
	}
	ts := r.Time.Format(time.RFC3339)
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-5s[%s] %s", lvl, ts, r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value.Any())
		return true
	})
	sb.WriteByte('\n')
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func (h *terminalHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *terminalHandler) WithGroup(_ string) slog.Handler      { return h }

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	case l >= slog.LevelDebug:
		return "DEBUG"
	default:
		return "TRACE"
	}
}

func colorFor(l slog.Level) func(string, ...interface{}) string {
	switch {
	case l >= slog.LevelError:
		return color.New(color.FgRed).SprintfFunc()
	case l >= slog.LevelWarn:
		return color.New(color.FgYellow).SprintfFunc()
	case l >= slog.LevelInfo:
		return color.New(color.FgGreen).SprintfFunc()
	default:
		return color.New(color.FgCyan).SprintfFunc()
	}
}
