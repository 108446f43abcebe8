package telemetry

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls OpenTelemetry tracing. Tracing is off unless Enabled.
type Config struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint"`
	Insecure    bool    `toml:"insecure"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled     string
	Endpoint    string
	Insecure    string
	ServiceName string
	SampleRatio string
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
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Insecure {
		c.Insecure = true
	}
	if overlay.ServiceName != "" {
		c.ServiceName = overlay.ServiceName
	}
	if overlay.SampleRatio != 0 {
		c.SampleRatio = overlay.SampleRatio
	}
}

func (c *Config) loadDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ServiceName == "" {
		c.ServiceName = "kekari-agent"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.Endpoint != "" {
		if v := os.Getenv(env.Endpoint); v != "" {
			c.Endpoint = v
		}
	}
	if env.Insecure != "" {
		if v := os.Getenv(env.Insecure); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Insecure = b
			}
		}
	}
	if env.ServiceName != "" {
		if v := os.Getenv(env.ServiceName); v != "" {
			c.ServiceName = v
		}
	}
	if env.SampleRatio != "" {
		if v := os.Getenv(env.SampleRatio); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				c.SampleRatio = f
			}
		}
	}
}

func (c *Config) validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample_ratio must be between 0 and 1, got %v", c.SampleRatio)
	}
	return nil
}
