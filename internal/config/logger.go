package config

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON logger used by every binary and installs it as
// the slog default.
func NewLogger(level, service string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv})).With("service", service)
	slog.SetDefault(l)
	return l
}
