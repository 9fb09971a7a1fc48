// Package config loads application configuration from environment variables
// and the delivery-service rule file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from
// environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 8980.
	Port int `envconfig:"PORT" default:"8980"`

	// DataDir is the root data directory (database, logs). Defaults to
	// ~/.webpushd.
	DataDir string `envconfig:"PUSH_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// TTL is the time-to-live attached to outgoing push requests, in
	// seconds. Defaults to four weeks.
	TTL int `envconfig:"PUSH_TTL" default:"2419200"`

	// AutomaticPadding pads encrypted payloads to a fixed envelope so the
	// ciphertext length does not leak the plaintext length.
	AutomaticPadding bool `envconfig:"PUSH_AUTO_PAD" default:"true"`

	// RequestTimeout bounds each delivery request, in seconds.
	RequestTimeout int `envconfig:"PUSH_REQUEST_TIMEOUT" default:"30"`

	// FlushInterval, when positive, flushes the pending queue every N
	// seconds without waiting for an explicit flush call.
	FlushInterval int `envconfig:"PUSH_FLUSH_INTERVAL" default:"0"`

	// ServicesFile points to the YAML file with legacy service rules and
	// API keys. Empty means built-in defaults.
	ServicesFile string `envconfig:"PUSH_SERVICES_FILE"`
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.webpushd if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".webpushd")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
