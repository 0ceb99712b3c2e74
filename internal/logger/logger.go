// ABOUTME: Structured logging configuration using log/slog.
// ABOUTME: Level and format come from the environment; the TUI logs to a file instead of the terminal.

package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger writing to w.
// LOG_LEVEL: debug, info, warn, error (default: info)
// LOG_FORMAT: text, json (default: text)
func New(w io.Writer) *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	format := strings.ToLower(os.Getenv("LOG_FORMAT"))

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init configures the default slog logger to write to w.
func Init(w io.Writer) *slog.Logger {
	l := New(w)
	slog.SetDefault(l)
	return l
}

// InitFile points the default logger at configDir/debug.log so a full-screen
// UI is not corrupted. The returned func closes the file. An empty configDir
// discards all output.
func InitFile(configDir string) (*slog.Logger, func(), error) {
	if configDir == "" {
		return Init(io.Discard), func() {}, nil
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Init(io.Discard), func() {}, err
	}

	logPath := filepath.Join(configDir, "debug.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return Init(io.Discard), func() {}, err
	}
	return Init(f), func() { f.Close() }, nil
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
