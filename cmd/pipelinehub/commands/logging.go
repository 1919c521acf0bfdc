package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.pipelinehub.dev/internal/config"
)

// newLogHandler builds the process log handler from the [log] settings.
func newLogHandler(cfg config.LogConfig, w io.Writer) (slog.Handler, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (use 'text' or 'json')", cfg.Format)
	}
}

// setupLogging installs the process-wide logger.
func setupLogging(cfg config.LogConfig, w io.Writer) error {
	h, err := newLogHandler(cfg, w)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(h))
	return nil
}
