// Package logging provides JSON-lines structured logging for runsel.
//
// The picker owns the terminal while it runs, so loggers normally write to a
// file under the data directory rather than stderr:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"INFO","msg":"session started","items":42}
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
	}
}

// New creates a new JSON-lines structured logger.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "ts"
			}
			return a
		},
	}

	return slog.New(slog.NewJSONHandler(output, opts))
}

// ParseLevel maps the config spelling of a level to slog.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// OpenFile opens (appending) a log file and returns a logger writing to it.
// The caller closes the returned io.Closer when the session ends.
func OpenFile(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := New(&Config{
		Output: f,
		Level:  level,
	})
	return logger, f, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// SessionInfo holds information to log when a picker session starts.
type SessionInfo struct {
	Version    string
	ConfigPath string
	Source     string
	Format     string
	Items      int
	Workers    int
	PID        int
}

// LogSessionStart logs picker session startup.
func LogSessionStart(logger *slog.Logger, info SessionInfo) {
	logger.Info("session started",
		"version", info.Version,
		"config_path", info.ConfigPath,
		"source", info.Source,
		"format", info.Format,
		"items", info.Items,
		"workers", info.Workers,
		"pid", info.PID,
	)
}

// LogSessionEnd logs how the session finished.
func LogSessionEnd(logger *slog.Logger, outcome string, selected int, elapsed time.Duration) {
	logger.Info("session ended",
		"outcome", outcome,
		"selected", selected,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// LogSourceReload logs a reload of the item source.
func LogSourceReload(logger *slog.Logger, path string, items int) {
	logger.Info("source reloaded", "path", path, "items", items)
}

// LogSourceReloadFailed logs a reload that kept the previous item set.
func LogSourceReloadFailed(logger *slog.Logger, path string, err error) {
	logger.Warn("source reload failed", "path", path, "error", err)
}
