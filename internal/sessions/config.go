package sessions

import (
	"fmt"
	"os"
	"time"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config selects and tunes the session backend.
type Config struct {
	Backend         string `toml:"backend"`
	TTL             string `toml:"ttl"`
	CleanupInterval string `toml:"cleanup_interval"`
	RedisURL        string `toml:"redis_url"`
	KeyPrefix       string `toml:"key_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend         string
	TTL             string
	CleanupInterval string
	RedisURL        string
	KeyPrefix       string
}

// TTLDuration returns TTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// CleanupIntervalDuration returns CleanupInterval as a time.Duration.
func (c *Config) CleanupIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.CleanupInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
	if overlay.CleanupInterval != "" {
		c.CleanupInterval = overlay.CleanupInterval
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.KeyPrefix != "" {
		c.KeyPrefix = overlay.KeyPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.TTL == "" {
		c.TTL = "24h"
	}
	if c.CleanupInterval == "" {
		c.CleanupInterval = "10m"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "session:"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.TTL != "" {
		if v := os.Getenv(env.TTL); v != "" {
			c.TTL = v
		}
	}
	if env.CleanupInterval != "" {
		if v := os.Getenv(env.CleanupInterval); v != "" {
			c.CleanupInterval = v
		}
	}
	if env.RedisURL != "" {
		if v := os.Getenv(env.RedisURL); v != "" {
			c.RedisURL = v
		}
	}
	if env.KeyPrefix != "" {
		if v := os.Getenv(env.KeyPrefix); v != "" {
			c.KeyPrefix = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url required for redis backend")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	if _, err := time.ParseDuration(c.TTL); err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.CleanupInterval); err != nil {
		return fmt.Errorf("invalid cleanup_interval: %w", err)
	}
	return nil
}
