// Package log configures the process-wide structured logger shared by the
// voxflow binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger at the given level. Unknown levels fall
// back to info so a typo in LOG_LEVEL never silences a process.
func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})))
}

// ParseLevel maps the LOG_LEVEL flag values onto slog levels.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule tags the default logger with the voxflow module name; every
// package in the tree logs through one of these handles.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
