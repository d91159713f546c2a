// Package config loads sheetsql settings from defaults, a YAML file,
// SHEETSQL_ environment variables and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Source kinds.
const (
	SourceKindFile = "file"
	SourceKindS3   = "s3"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// AllReports grants a role every report.
const AllReports = "*"

// Config holds all settings.
type Config struct {
	Source SourceConfig `koanf:"source"`
	Store  StoreConfig  `koanf:"store"`
	Retry  RetryConfig  `koanf:"retry"`
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
}

// SourceConfig selects where the workbook comes from.
type SourceConfig struct {
	Kind string   `koanf:"kind"`
	Path string   `koanf:"path"`
	S3   S3Config `koanf:"s3"`
}

// S3Config locates a remote workbook object.
type S3Config struct {
	Bucket  string `koanf:"bucket"`
	Key     string `koanf:"key"`
	Region  string `koanf:"region"`
	Profile string `koanf:"profile"`
}

// StoreConfig describes the SQLite destination.
type StoreConfig struct {
	Path         string        `koanf:"path"`
	DefaultTable string        `koanf:"default_table"`
	LockTimeout  time.Duration `koanf:"lock_timeout"`
}

// RetryConfig controls re-opening a locked source.
type RetryConfig struct {
	Attempts int           `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

// ServerConfig configures the report endpoint.
type ServerConfig struct {
	Addr          string `koanf:"addr"`
	SessionSecret string `koanf:"session_secret"`
	// Roles maps a session role to the report names it may read.
	// An empty map disables the role gate.
	Roles map[string][]string `koanf:"roles"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the flattened default settings.
func Defaults() map[string]any {
	return map[string]any{
		"source.kind":         SourceKindFile,
		"source.path":         "dummy_data.xlsx",
		"store.path":          "dummy_data.db",
		"store.default_table": "",
		"store.lock_timeout":  "1s",
		"retry.attempts":      8,
		"retry.delay":         "750ms",
		"server.addr":         ":5001",
		"log.level":           "info",
		"log.format":          LogFormatText,
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	switch c.Source.Kind {
	case SourceKindFile:
		if strings.TrimSpace(c.Source.Path) == "" {
			errs = append(errs, errors.New("source.path is required for file sources"))
		}
	case SourceKindS3:
		if c.Source.S3.Bucket == "" || c.Source.S3.Key == "" {
			errs = append(errs, errors.New("source.s3.bucket and source.s3.key are required for s3 sources"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.LockTimeout <= 0 {
		errs = append(errs, errors.New("store.lock_timeout must be positive"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, errors.New("retry.delay must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q", s)
	}
	return level, nil
}
