// Package utils
package utils

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured logger at the given level. Supported
// levels: "debug", "info", "warn", "error". Unrecognised strings fall
// back to "info".
func NewLogger(level string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "info":
		slevel = slog.LevelInfo
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slevel,
	})

	return slog.New(handler)
}
