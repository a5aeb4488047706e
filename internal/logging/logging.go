// Package logging sets up the process wide slog logger.
//
// Records go to a colored tint handler on stderr and, when a file is given,
// also to a JSON handler writing to a rotated log file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel converts a -log-level flag value.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}

// Setup installs the default logger and returns a function closing the log
// file, if any.
func Setup(level slog.Leveler, file string) (func() error, error) {
	h := NewConsoleHandler(colorable.NewColorable(os.Stderr), level, isatty.IsTerminal(os.Stderr.Fd()))
	closer := func() error { return nil }
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil { //nolint:gosec // G301: log directory
			return nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		h = Fanout(h, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level}))
		closer = lj.Close
	}
	slog.SetDefault(slog.New(h))
	return closer, nil
}

// NewConsoleHandler returns the human readable handler used on stderr.
//
// Empty values are dropped to keep lines short. Timestamps are dropped when
// running under systemd since the journal adds its own.
func NewConsoleHandler(w io.Writer, level slog.Leveler, color bool) slog.Handler {
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if underSystemd && a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			if isEmpty(a.Value.Any()) {
				return slog.Attr{}
			}
			return a
		},
	})
}

func isEmpty(val any) bool {
	switch t := val.(type) {
	case string:
		return t == ""
	case bool:
		return !t
	case uint64:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case time.Time:
		return t.IsZero()
	case time.Duration:
		return t == 0
	case nil:
		return true
	}
	return false
}

// Fanout returns a handler sending each record to all of handlers.
func Fanout(handlers ...slog.Handler) slog.Handler {
	return fanout(handlers)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
