package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/contre95/fpbridge/src/features/config"
)

// SetupLogger builds the process logger from the logger config section.
func SetupLogger(cfg *config.Manager) *slog.Logger {
	return NewLogger(os.Stderr, cfg.Get().Logger)
}

// NewLogger returns a slog logger backed by a charmbracelet handler writing to w.
func NewLogger(w io.Writer, cfg config.Logger) *slog.Logger {
	if !cfg.Enabled {
		w = io.Discard
	}

	var formatter log.Formatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "text":
		formatter = log.TextFormatter
	default:
		formatter = log.LogfmtFormatter
	}

	level := log.InfoLevel
	switch cfg.Level {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "fpbridge",
		Formatter:       formatter,
		Level:           level,
	})

	logger := slog.New(handler)
	logger.Debug("Logger initialized", "time", time.Now().Format(time.RFC3339))
	return logger
}
