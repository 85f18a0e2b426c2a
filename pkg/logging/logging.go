// Package logging builds the JSON structured logger used across the saga.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger at the level named by LOG_LEVEL (info when
// unset) and installs it as the slog default.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}
