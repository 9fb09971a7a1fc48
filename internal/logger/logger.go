// Package logger provides the structured slog logger for the push service.
// All logs are written in JSON format to <logDir>/webpushd.log with
// size-based rotation.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to <logDir>/webpushd.log. The
// directory is created if it does not exist; the file rotates at 10 MB,
// keeping three backups.
func New(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "webpushd.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

// NewConsole creates a text slog.Logger writing to stderr, used by one-shot
// CLI commands where a log file would be noise.
func NewConsole(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
