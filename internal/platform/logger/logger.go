package logger

import (
	"io"
	"log/slog"
	"os"

	"teamreg/internal/platform/config"
)

// New builds a structured logger from cfg, writing to w (os.Stdout when nil).
// Unknown levels fall back to info; config.Validate rejects them earlier.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", "teamreg")
}
