package search

import (
	"fmt"
	"os"
	"strconv"

	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// Config holds search service parameters.
type Config struct {
	client.Config
	TopK int `toml:"top_k"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	client.Env
	TopK string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.TopK == 0 {
		c.TopK = 5
	}
	var clientEnv *client.Env
	if env != nil {
		if env.TopK != "" {
			if v := os.Getenv(env.TopK); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					c.TopK = n
				}
			}
		}
		clientEnv = &env.Env
	}
	if err := c.Config.Finalize(clientEnv); err != nil {
		return err
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Config.Merge(&overlay.Config)
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
}
