package storage

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Config holds Azure Blob Storage connection parameters.
// When Enabled is false the storage system is a no-op and
// committed assets are referenced by their original location only.
type Config struct {
	Enabled          bool   `toml:"enabled"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	// Prefix namespaces every key, so several deployments can share a
	// container.
	Prefix     string `toml:"prefix"`
	MaxRetries int    `toml:"max_retries"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled          string
	ContainerName    string
	ConnectionString string
	Prefix           string
	MaxRetries       string
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "kekari"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *Config) loadEnv(env *Env) {
	get := func(name string) string {
		if name == "" {
			return ""
		}
		return os.Getenv(name)
	}

	if b, err := strconv.ParseBool(get(env.Enabled)); err == nil {
		c.Enabled = b
	}
	if v := get(env.ContainerName); v != "" {
		c.ContainerName = v
	}
	if v := get(env.ConnectionString); v != "" {
		c.ConnectionString = v
	}
	if v := get(env.Prefix); v != "" {
		c.Prefix = v
	}
	if n, err := strconv.Atoi(get(env.MaxRetries)); err == nil {
		c.MaxRetries = n
	}
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if !c.Enabled {
		return nil
	}
	if c.ContainerName == "" {
		return errors.New("container_name required")
	}
	if c.ConnectionString == "" {
		return errors.New("connection_string required")
	}
	return nil
}
