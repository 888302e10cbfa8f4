// Package log configures the process-wide slog default used by every
// leadflow binary.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger. Unknown levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler).With("service", "leadflow"))
}

// WithModule returns the default logger tagged with a module attribute.
// Engine components use it so log lines can be filtered per subsystem.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
