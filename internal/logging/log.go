// Package logging builds the JSON-lines logger used across palette.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
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

// New creates a JSON-lines logger. String attributes pass through Redact.
// Records look like:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"INFO","msg":"command executed","id":"git.status"}
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
				return a
			}
			return redactAttr(a)
		},
	}
	return slog.New(slog.NewJSONHandler(output, opts))
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Open returns a logger writing to path, or to fallback when path is empty.
// The returned closer releases the log file and is never nil.
func Open(level, path string, fallback io.Writer) (*slog.Logger, io.Closer, error) {
	cfg := &Config{Output: fallback, Level: ParseLevel(level)}
	if path == "" {
		return New(cfg), io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	//nolint:gosec // G304: log path is from trusted config
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	cfg.Output = f
	return New(cfg), f, nil
}

// StartupInfo is logged once per process.
type StartupInfo struct {
	Version        string
	GitCommit      string
	ConfigPath     string
	StorageBackend string
	StoragePath    string
	Commands       int
	HistoryEntries int
}

// LogStartup logs startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Debug("palette started",
		"version", info.Version,
		"git_commit", info.GitCommit,
		"config_path", info.ConfigPath,
		"storage_backend", info.StorageBackend,
		"storage_path", info.StoragePath,
		"commands", info.Commands,
		"history_entries", info.HistoryEntries,
	)
}

// LogShutdown logs the final checkpoint.
func LogShutdown(logger *slog.Logger, reason string) {
	logger.Debug("palette shutting down", "reason", reason)
}

// LogConfigReload logs a configuration reload.
func LogConfigReload(logger *slog.Logger, configPath string) {
	logger.Info("configuration reloaded", "config_path", configPath)
}

// LogStorageError logs a failed storage operation.
func LogStorageError(logger *slog.Logger, operation string, err error) {
	logger.Error("storage error", "operation", operation, "error", err)
}
