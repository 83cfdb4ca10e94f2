package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/LavaJover/shvark-mpesa-service/internal/config"
)

// NewSlogLogger builds the process logger from log_config.
func NewSlogLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.LogOutput, "stderr") {
		out = os.Stderr
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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
