// Package logging builds the structured logger shared by the binaries.
package logging

import (
	"io"
	"log/slog"
)

// New returns a logger writing to w at the given level. format "text" selects
// the key=value handler; anything else logs JSON. Unknown levels fall back to
// info.
func New(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(level)}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Level maps a LOG_LEVEL value to a slog level.
func Level(level string) slog.Level {
	switch level {
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
