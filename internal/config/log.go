package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	EnvLogLevel      = "KEKARI_LOG_LEVEL"
	EnvLogFormat     = "KEKARI_LOG_FORMAT"
	EnvLogFile       = "KEKARI_LOG_FILE"
	EnvLogMaxSize    = "KEKARI_LOG_MAX_SIZE"
	EnvLogMaxBackups = "KEKARI_LOG_MAX_BACKUPS"
	EnvLogMaxAge     = "KEKARI_LOG_MAX_AGE"
	EnvLogCompress   = "KEKARI_LOG_COMPRESS"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig selects the log handler and an optional rotating log file.
// MaxSize is in megabytes and MaxAge in days.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
	MaxAge     int    `toml:"max_age"`
	Compress   bool   `toml:"compress"`
}

// SlogLevel returns Level as a slog.Level.
func (c *LogConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LogConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *LogConfig) Merge(overlay *LogConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
	if overlay.File != "" {
		c.File = overlay.File
	}
	if overlay.MaxSize != 0 {
		c.MaxSize = overlay.MaxSize
	}
	if overlay.MaxBackups != 0 {
		c.MaxBackups = overlay.MaxBackups
	}
	if overlay.MaxAge != 0 {
		c.MaxAge = overlay.MaxAge
	}
	if overlay.Compress {
		c.Compress = true
	}
}

func (c *LogConfig) loadDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = LogFormatText
	}
	if c.MaxSize == 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAge == 0 {
		c.MaxAge = 28
	}
}

func (c *LogConfig) loadEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Format = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.File = v
	}
	if v := os.Getenv(EnvLogMaxSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxSize = n
		}
	}
	if v := os.Getenv(EnvLogMaxBackups); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxBackups = n
		}
	}
	if v := os.Getenv(EnvLogMaxAge); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAge = n
		}
	}
	if v := os.Getenv(EnvLogCompress); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Compress = b
		}
	}
}

func (c *LogConfig) validate() error {
	c.Format = strings.ToLower(c.Format)
	if c.Format != LogFormatText && c.Format != LogFormatJSON {
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	if c.MaxSize < 1 {
		return fmt.Errorf("max_size must be positive")
	}
	return nil
}
