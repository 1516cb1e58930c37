// Package logging builds the process slog logger and adapts it to the
// four-field Log(level, stage, message, detail) surface the detector uses.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level     string
	Format    string
	Component string
	Output    io.Writer
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New returns a text or JSON slog logger. Attributes whose key looks like a
// credential are replaced by [REDACTED].
func New(cfg Config) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		},
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}
	return slog.New(handler)
}

func shouldRedact(key string) bool {
	keyLower := strings.ToLower(key)
	for _, sensitive := range []string{"password", "secret", "token", "api_key", "apikey", "authorization", "bearer", "credential", "dsn"} {
		if strings.Contains(keyLower, sensitive) {
			return true
		}
	}
	return false
}

// PipelineLogger forwards Log calls to slog.
type PipelineLogger struct {
	L *slog.Logger
}

func (p PipelineLogger) Log(level, stage, message, detail string) {
	l := p.L
	if l == nil {
		l = slog.Default()
	}
	l.Log(context.Background(), ParseLevel(level), message, slog.String("stage", stage), slog.String("detail", detail))
}
