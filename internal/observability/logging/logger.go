// Package logging builds the process-wide slog logger. Every binary
// logs JSON to stdout tagged with its service name, so api, worker
// and indexer lines can be told apart in a shared stream.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// NewJSONLogger returns a service-tagged JSON logger. Unknown level
// strings fall back to info rather than failing startup.
func NewJSONLogger(service, level string) *slog.Logger {
	parsed, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		parsed = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parsed})
	return slog.New(handler).With("service", service)
}
