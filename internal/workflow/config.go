package workflow

import (
	"fmt"
	"os"
	"strconv"
)

// Config tunes turn execution.
type Config struct {
	MaxHops      int `toml:"max_hops"`
	HistorySize  int `toml:"history_size"`
	SummaryLimit int `toml:"summary_limit"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxHops      string
	HistorySize  string
	SummaryLimit string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		if err := c.loadEnv(env); err != nil {
			return err
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxHops != 0 {
		c.MaxHops = overlay.MaxHops
	}
	if overlay.HistorySize != 0 {
		c.HistorySize = overlay.HistorySize
	}
	if overlay.SummaryLimit != 0 {
		c.SummaryLimit = overlay.SummaryLimit
	}
}

func (c *Config) loadDefaults() {
	if c.MaxHops <= 0 {
		c.MaxHops = 12
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 10
	}
	if c.SummaryLimit <= 0 {
		c.SummaryLimit = 5
	}
}

func (c *Config) loadEnv(env *Env) error {
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{env.MaxHops, &c.MaxHops},
		{env.HistorySize, &c.HistorySize},
		{env.SummaryLimit, &c.SummaryLimit},
	} {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", f.name, err)
			}
			*f.dst = n
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.MaxHops < 2 {
		return fmt.Errorf("max_hops must be at least 2, got %d", c.MaxHops)
	}
	return nil
}
