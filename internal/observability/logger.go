// Package observability provides structured logging for marquee.
package observability

import (
	"io"
	"log/slog"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/marqueehq/marquee/internal/config"
)

// redactedKeys are attribute keys whose values are obfuscated in log output.
// Directory API keys and similar credentials must never land in logs.
var redactedKeys = []string{"api_key", "apikey", "token", "password", "secret", "authorization"}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided
// writer. The logger supports JSON and text formats with configurable log
// levels.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: newReplaceAttr(cfg.TimeFormat),
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// newReplaceAttr builds the ReplaceAttr hook: custom time formatting plus
// masq-based redaction of credential attributes.
func newReplaceAttr(timeFormat string) func([]string, slog.Attr) slog.Attr {
	redactOpts := make([]masq.Option, 0, len(redactedKeys))
	for _, key := range redactedKeys {
		redactOpts = append(redactOpts, masq.WithFieldName(key))
	}
	redact := masq.New(redactOpts...)

	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && timeFormat != "" {
			if t, ok := a.Value.Any().(time.Time); ok {
				return slog.String(slog.TimeKey, t.Format(timeFormat))
			}
		}
		return redact(groups, a)
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithApp adds the application name to the logger.
func WithApp(logger *slog.Logger, app string) *slog.Logger {
	return logger.With(slog.String("app", app))
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
