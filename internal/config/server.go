package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "KEKARI_SERVER_HOST"
	EnvServerPort              = "KEKARI_SERVER_PORT"
	EnvServerReadTimeout       = "KEKARI_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "KEKARI_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "KEKARI_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "KEKARI_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "KEKARI_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters. Timeouts are Go duration
// strings. WriteTimeout bounds a whole chat turn, so it defaults well above
// the turn timeout.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration { return mustDuration(c.ReadTimeout) }
func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration { return mustDuration(c.ReadHeaderTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration { return mustDuration(c.WriteTimeout) }
func (c *ServerConfig) IdleTimeoutDuration() time.Duration { return mustDuration(c.IdleTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return mustDuration(c.ShutdownTimeout) }

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, t := range c.timeouts() {
		if v := *t.of(overlay); v != "" {
			*t.of(c) = v
		}
	}
}

// timeout binds one duration field to its key, env var, and default.
type timeout struct {
	key, env, def string
	of            func(*ServerConfig) *string
}

func (c *ServerConfig) timeouts() []timeout {
	return []timeout{
		{"read_timeout", EnvServerReadTimeout, "1m", func(s *ServerConfig) *string { return &s.ReadTimeout }},
		{"read_header_timeout", EnvServerReadHeaderTimeout, "10s", func(s *ServerConfig) *string { return &s.ReadHeaderTimeout }},
		{"write_timeout", EnvServerWriteTimeout, "15m", func(s *ServerConfig) *string { return &s.WriteTimeout }},
		{"idle_timeout", EnvServerIdleTimeout, "2m", func(s *ServerConfig) *string { return &s.IdleTimeout }},
		{"shutdown_timeout", EnvServerShutdownTimeout, "30s", func(s *ServerConfig) *string { return &s.ShutdownTimeout }},
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, t := range c.timeouts() {
		if p := t.of(c); *p == "" {
			*p = t.def
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, t := range c.timeouts() {
		if v := os.Getenv(t.env); v != "" {
			*t.of(c) = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, t := range c.timeouts() {
		d, err := time.ParseDuration(*t.of(c))
		if err != nil {
			return fmt.Errorf("invalid %s: %w", t.key, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: negative duration", t.key)
		}
	}
	return nil
}

// mustDuration parses a duration already checked by validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
