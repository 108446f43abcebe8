package config

import (
	"fmt"
	"os"

	"github.com/zxlitianshu/Kekari-agent/pkg/formatting"
	"github.com/zxlitianshu/Kekari-agent/pkg/middleware"
	"github.com/zxlitianshu/Kekari-agent/pkg/module"
	"github.com/zxlitianshu/Kekari-agent/pkg/openapi"
	"github.com/zxlitianshu/Kekari-agent/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "KEKARI_CORS_ENABLED",
	Origins:          "KEKARI_CORS_ORIGINS",
	AllowedMethods:   "KEKARI_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "KEKARI_CORS_ALLOWED_HEADERS",
	AllowCredentials: "KEKARI_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "KEKARI_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "KEKARI_OPENAPI_TITLE",
	Description: "KEKARI_OPENAPI_DESCRIPTION",
	Servers:     "KEKARI_OPENAPI_SERVERS",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "KEKARI_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "KEKARI_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, request limits, CORS, and pagination settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxBodySize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := module.ValidatePrefix(c.BasePath); err != nil {
		return fmt.Errorf("base_path: %w", err)
	}
	if size, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("max_body_size: %w", err)
	} else if size <= 0 {
		return fmt.Errorf("max_body_size must be positive")
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("KEKARI_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("KEKARI_API_MAX_BODY_SIZE"); v != "" {
		c.MaxBodySize = v
	}
}
