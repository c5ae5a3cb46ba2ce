// Package logging wires up the process-wide structured logger: a
// console handler at the requested level plus an always-on debug file
// handler, built on log/slog because the origin's four severities
// (DEBUG/INFO/WARNING/CRITICAL) need real levels, not a single gate.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// LevelCritical has no built-in slog equivalent; it renders above
// LevelError so CRITICAL lines are never mistaken for ordinary errors.
const LevelCritical = slog.Level(12)

// ParseLevel maps the origin's level names to slog levels. Unknown
// names fall back to INFO.
func ParseLevel(name string) slog.Level {
	switch name {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "CRITICAL":
		return LevelCritical
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	level, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	if level == LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// New builds the console logger at consoleLevel and, when logFile is
// non-empty, a second handler writing everything at DEBUG to that
// file. Both handlers share the same record stream via slog's
// multi-handler idiom (a small fan-out handler), mirroring the
// origin's dual logging.StreamHandler/FileHandler setup in cli.py.
func New(consoleLevel slog.Level, logFile string) (*slog.Logger, func() error, error) {
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       consoleLevel,
			ReplaceAttr: replaceLevel,
		}),
	}
	closeFn := func() error { return nil }

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: replaceLevel,
		}))
		closeFn = f.Close
	}

	return slog.New(&fanOutHandler{handlers: handlers}), closeFn, nil
}

// Critical logs msg at the CRITICAL severity.
func Critical(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelCritical, msg, args...)
}

// fanOutHandler dispatches every record to each wrapped handler whose
// own level threshold accepts it.
type fanOutHandler struct {
	handlers []slog.Handler
}

func (h *fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			if err := hh.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &fanOutHandler{handlers: out}
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &fanOutHandler{handlers: out}
}
