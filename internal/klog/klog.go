// Package klog provides the kernel's structured logger.
//
// It wraps zerolog so every log line shares field names with the event
// taxonomy in internal/events: "task_id", "goal_id", "worker_id", "mode".
// This keeps log greps and event-stream filters interchangeable.
package klog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the kernel's structured logger, a thin zerolog.Logger wrapper so
// callers depend on this package instead of rs/zerolog directly.
type Logger struct {
	zl zerolog.Logger
}

var base = New(os.Stderr, false)

// New builds a Logger writing to w. When pretty is true, output uses
// zerolog's console writer (for interactive `sunwell` runs); otherwise it
// emits one JSON object per line (for worker subprocesses and log files).
func New(w io.Writer, pretty bool) Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return Logger{zl: zerolog.New(out).With().Timestamp().Logger()}
}

// Default returns the process-wide default logger.
func Default() Logger { return base }

// SetDefault replaces the process-wide default logger.
func SetDefault(l Logger) { base = l }

// With returns a child logger with additional structured fields attached.
func (l Logger) With(fields map[string]any) Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return Logger{zl: ctx.Logger()}
}

func (l Logger) Debug(msg string, fields map[string]any) { l.event(l.zl.Debug(), msg, fields) }
func (l Logger) Info(msg string, fields map[string]any)  { l.event(l.zl.Info(), msg, fields) }
func (l Logger) Warn(msg string, fields map[string]any)  { l.event(l.zl.Warn(), msg, fields) }

func (l Logger) Error(msg string, err error, fields map[string]any) {
	ev := l.zl.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	l.event(ev, msg, fields)
}

func (l Logger) event(ev *zerolog.Event, msg string, fields map[string]any) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
