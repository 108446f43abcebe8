package publishing

import (
	"fmt"
	"os"
	"strconv"

	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

// Config holds publish service and policy parameters.
type Config struct {
	client.Config
	Concurrency int    `toml:"concurrency"`
	PolicyPath  string `toml:"policy_path"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	client.Env
	Concurrency string
	PolicyPath  string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	var clientEnv *client.Env
	if env != nil {
		if env.Concurrency != "" {
			if v := os.Getenv(env.Concurrency); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					c.Concurrency = n
				}
			}
		}
		if env.PolicyPath != "" {
			if v := os.Getenv(env.PolicyPath); v != "" {
				c.PolicyPath = v
			}
		}
		clientEnv = &env.Env
	}
	if err := c.Config.Finalize(clientEnv); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Config.Merge(&overlay.Config)
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
	if overlay.PolicyPath != "" {
		c.PolicyPath = overlay.PolicyPath
	}
}
