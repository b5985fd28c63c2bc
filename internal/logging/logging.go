// Package logging builds the engine's slog logger.
package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// New returns a logger that writes text to stderr and, when path is
// non-empty, JSON lines to the given file. The file handler failing to
// open is not fatal; logging falls back to stderr only.
func New(path string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.New(handlers[0]).Warn("open log file", "path", path, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	return slog.New(slogmulti.Fanout(handlers...))
}
