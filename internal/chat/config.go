package chat

import (
	"fmt"
	"os"
	"time"
)

// Config tunes the turn boundary and the chat-completions surface.
type Config struct {
	Model       string `toml:"model"`
	TurnTimeout string `toml:"turn_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Model       string
	TurnTimeout string
}

// TurnTimeoutDuration returns TurnTimeout as a time.Duration.
func (c *Config) TurnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.TurnTimeout)
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
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.TurnTimeout != "" {
		c.TurnTimeout = overlay.TurnTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "kekari-agent"
	}
	if c.TurnTimeout == "" {
		c.TurnTimeout = "2m"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.TurnTimeout != "" {
		if v := os.Getenv(env.TurnTimeout); v != "" {
			c.TurnTimeout = v
		}
	}
}

func (c *Config) validate() error {
	d, err := time.ParseDuration(c.TurnTimeout)
	if err != nil {
		return fmt.Errorf("invalid turn_timeout: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("turn_timeout must be positive")
	}
	return nil
}
