// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options select the handler. Empty fields fall back to the environment
// (VIRUSCAN_LOG_FORMAT, VIRUSCAN_LOG_LEVEL), then to text at info level.
type Options struct {
	Format string // "text" or "json"
	Level  string // "debug", "info", "warn", "error"
	Output io.Writer
}

// Init builds the logger, installs it as the slog default and returns it.
func Init(component string, opts Options) *slog.Logger {
	format := strings.ToLower(firstNonEmpty(opts.Format, os.Getenv("VIRUSCAN_LOG_FORMAT")))
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: ParseLevel(firstNonEmpty(opts.Level, os.Getenv("VIRUSCAN_LOG_LEVEL")))}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	logger := slog.New(handler).With("component", component)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
