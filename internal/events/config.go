package events

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds event bus settings. NATSURL enables forwarding of
// every published event to a JetStream stream.
type Config struct {
	Buffer        int    `toml:"buffer"`
	NATSURL       string `toml:"nats_url"`
	Stream        string `toml:"stream"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Buffer        string
	NATSURL       string
	Stream        string
	SubjectPrefix string
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
	if overlay.Buffer != 0 {
		c.Buffer = overlay.Buffer
	}
	if overlay.NATSURL != "" {
		c.NATSURL = overlay.NATSURL
	}
	if overlay.Stream != "" {
		c.Stream = overlay.Stream
	}
	if overlay.SubjectPrefix != "" {
		c.SubjectPrefix = overlay.SubjectPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.Buffer == 0 {
		c.Buffer = 64
	}
	if c.Stream == "" {
		c.Stream = "KEKARI"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "kekari"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Buffer != "" {
		if v := os.Getenv(env.Buffer); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Buffer = n
			}
		}
	}
	if env.NATSURL != "" {
		if v := os.Getenv(env.NATSURL); v != "" {
			c.NATSURL = v
		}
	}
	if env.Stream != "" {
		if v := os.Getenv(env.Stream); v != "" {
			c.Stream = v
		}
	}
	if env.SubjectPrefix != "" {
		if v := os.Getenv(env.SubjectPrefix); v != "" {
			c.SubjectPrefix = v
		}
	}
}

func (c *Config) validate() error {
	if c.Buffer < 0 {
		return fmt.Errorf("buffer must not be negative")
	}
	return nil
}
