// Package logging builds the process logger: slog text output on stdout,
// optionally teed into a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/meltforce/fretlog/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger for cfg and a closer for the log file, if any.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	return NewTo(os.Stdout, cfg)
}

// NewTo is New writing to console instead of stdout. The MCP stdio server
// logs to stderr because stdout carries the protocol.
func NewTo(console io.Writer, cfg config.LoggingConfig) (*slog.Logger, io.Closer) {
	out := console
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(console, rot)
		closer = rot
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(cfg.Level)})
	return slog.New(h), closer
}

// ParseLevel maps a config level name to a slog level. Unknown names are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
