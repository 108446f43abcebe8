package openapi

import (
	"os"
	"strings"
)

const (
	defaultTitle       = "Kekari API"
	defaultDescription = "Conversational product workflow service: search, image modification with confirmation, and publishing."
)

// Config carries the document metadata. Servers lists public base URLs
// advertised in addition to the API base path, such as a gateway address.
type Config struct {
	Title       string   `toml:"title"`
	Description string   `toml:"description"`
	Servers     []string `toml:"servers"`
}

// ConfigEnv names the environment variables that override Config.
// Servers is read as a comma-separated list.
type ConfigEnv struct {
	Title       string
	Description string
	Servers     string
}

// Finalize fills defaults and applies environment overrides.
func (c *Config) Finalize(env *ConfigEnv) error {
	if env != nil {
		lookup(env.Title, &c.Title)
		lookup(env.Description, &c.Description)

		var servers string
		if lookup(env.Servers, &servers) {
			c.Servers = splitList(servers)
		}
	}

	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Description == "" {
		c.Description = defaultDescription
	}
	return nil
}

// Merge copies the set fields of overlay onto c.
func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
	if len(overlay.Servers) > 0 {
		c.Servers = overlay.Servers
	}
}

func lookup(name string, dst *string) bool {
	if name == "" {
		return false
	}
	v := os.Getenv(name)
	if v == "" {
		return false
	}
	*dst = v
	return true
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
