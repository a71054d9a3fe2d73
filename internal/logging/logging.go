// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saadjs/bitelog/internal/config"
)

// Setup installs a default slog logger built from cfg. The returned close
// func releases the log file, if any; call it once the command is done.
//
// Output goes to stderr; when cfg.File is set it goes to a size-rotated
// file instead so progress output on the terminal stays readable.
func Setup(cfg config.LogConfig) (*slog.Logger, func() error) {
	if strings.TrimSpace(cfg.File) == "" {
		logger := New(os.Stderr, cfg.Level, cfg.Format)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     30,
	}
	logger := New(file, cfg.Level, cfg.Format)
	slog.SetDefault(logger)
	return logger, file.Close
}

// New builds a logger writing to w. Format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
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
