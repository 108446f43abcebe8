package classify

import (
	"fmt"
	"os"
	"strconv"

	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// Config holds classifier endpoint and model parameters.
type Config struct {
	client.Config
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	HistorySize int     `toml:"history_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	client.Env
	Model       string
	Temperature string
	MaxTokens   string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	var clientEnv *client.Env
	if env != nil {
		c.loadEnv(env)
		clientEnv = &env.Env
	}
	if err := c.Config.Finalize(clientEnv); err != nil {
		return err
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Config.Merge(&overlay.Config)
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Temperature != 0 {
		c.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != 0 {
		c.MaxTokens = overlay.MaxTokens
	}
	if overlay.HistorySize != 0 {
		c.HistorySize = overlay.HistorySize
	}
}

func (c *Config) loadDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 800
	}
	if c.HistorySize == 0 {
		c.HistorySize = 10
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.Temperature != "" {
		if v := os.Getenv(env.Temperature); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.Temperature = f
			}
		}
	}
	if env.MaxTokens != "" {
		if v := os.Getenv(env.MaxTokens); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxTokens = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}
