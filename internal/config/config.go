package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/zxlitianshu/Kekari-agent/internal/chat"
	"github.com/zxlitianshu/Kekari-agent/internal/classify"
	"github.com/zxlitianshu/Kekari-agent/internal/events"
	"github.com/zxlitianshu/Kekari-agent/internal/publishing"
	"github.com/zxlitianshu/Kekari-agent/internal/search"
	"github.com/zxlitianshu/Kekari-agent/internal/sessions"
	"github.com/zxlitianshu/Kekari-agent/internal/telemetry"
	"github.com/zxlitianshu/Kekari-agent/internal/workflow"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"
	DotEnvFile           = ".env"

	EnvKekariEnv             = "KEKARI_ENV"
	EnvKekariShutdownTimeout = "KEKARI_SHUTDOWN_TIMEOUT"
	EnvKekariVersion         = "KEKARI_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "KEKARI_DB_DRIVER",
	Host:            "KEKARI_DB_HOST",
	Port:            "KEKARI_DB_PORT",
	Name:            "KEKARI_DB_NAME",
	User:            "KEKARI_DB_USER",
	Password:        "KEKARI_DB_PASSWORD",
	SSLMode:         "KEKARI_DB_SSL_MODE",
	Path:            "KEKARI_DB_PATH",
	MaxOpenConns:    "KEKARI_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "KEKARI_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "KEKARI_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "KEKARI_DB_CONN_TIMEOUT",
	AutoMigrate:     "KEKARI_DB_AUTO_MIGRATE",
}

var storageEnv = &storage.Env{
	Enabled:          "KEKARI_STORAGE_ENABLED",
	ContainerName:    "KEKARI_STORAGE_CONTAINER_NAME",
	ConnectionString: "KEKARI_STORAGE_CONNECTION_STRING",
	Prefix:           "KEKARI_STORAGE_PREFIX",
	MaxRetries:       "KEKARI_STORAGE_MAX_RETRIES",
}

var sessionsEnv = &sessions.Env{
	Backend:         "KEKARI_SESSIONS_BACKEND",
	TTL:             "KEKARI_SESSIONS_TTL",
	CleanupInterval: "KEKARI_SESSIONS_CLEANUP_INTERVAL",
	RedisURL:        "KEKARI_SESSIONS_REDIS_URL",
	KeyPrefix:       "KEKARI_SESSIONS_KEY_PREFIX",
}

var classifierEnv = &classify.Env{
	Env: client.Env{
		BaseURL: "KEKARI_CLASSIFIER_BASE_URL",
		APIKey:  "KEKARI_CLASSIFIER_API_KEY",
		Timeout: "KEKARI_CLASSIFIER_TIMEOUT",
	},
	Model:       "KEKARI_CLASSIFIER_MODEL",
	Temperature: "KEKARI_CLASSIFIER_TEMPERATURE",
	MaxTokens:   "KEKARI_CLASSIFIER_MAX_TOKENS",
}

var searchEnv = &search.Env{
	Env: client.Env{
		BaseURL: "KEKARI_SEARCH_BASE_URL",
		APIKey:  "KEKARI_SEARCH_API_KEY",
		Timeout: "KEKARI_SEARCH_TIMEOUT",
	},
	TopK: "KEKARI_SEARCH_TOP_K",
}

var transformEnv = &client.Env{
	BaseURL: "KEKARI_TRANSFORM_BASE_URL",
	APIKey:  "KEKARI_TRANSFORM_API_KEY",
	Timeout: "KEKARI_TRANSFORM_TIMEOUT",
}

var publishEnv = &publishing.Env{
	Env: client.Env{
		BaseURL: "KEKARI_PUBLISH_BASE_URL",
		APIKey:  "KEKARI_PUBLISH_API_KEY",
		Timeout: "KEKARI_PUBLISH_TIMEOUT",
	},
	Concurrency: "KEKARI_PUBLISH_CONCURRENCY",
	PolicyPath:  "KEKARI_PUBLISH_POLICY_PATH",
}

var eventsEnv = &events.Env{
	Buffer:        "KEKARI_EVENTS_BUFFER",
	NATSURL:       "KEKARI_EVENTS_NATS_URL",
	Stream:        "KEKARI_EVENTS_STREAM",
	SubjectPrefix: "KEKARI_EVENTS_SUBJECT_PREFIX",
}

var telemetryEnv = &telemetry.Env{
	Enabled:     "KEKARI_TELEMETRY_ENABLED",
	Endpoint:    "KEKARI_TELEMETRY_ENDPOINT",
	Insecure:    "KEKARI_TELEMETRY_INSECURE",
	ServiceName: "KEKARI_TELEMETRY_SERVICE_NAME",
	SampleRatio: "KEKARI_TELEMETRY_SAMPLE_RATIO",
}

var workflowEnv = &workflow.Env{
	MaxHops:      "KEKARI_WORKFLOW_MAX_HOPS",
	HistorySize:  "KEKARI_WORKFLOW_HISTORY_SIZE",
	SummaryLimit: "KEKARI_WORKFLOW_SUMMARY_LIMIT",
}

var chatEnv = &chat.Env{
	Model:       "KEKARI_CHAT_MODEL",
	TurnTimeout: "KEKARI_CHAT_TURN_TIMEOUT",
}

// Config is the root configuration for the Kekari service.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	API             APIConfig         `toml:"api"`
	Log             LogConfig         `toml:"log"`
	Sessions        sessions.Config   `toml:"sessions"`
	Classifier      classify.Config   `toml:"classifier"`
	Search          search.Config     `toml:"search"`
	Transform       client.Config     `toml:"transform"`
	Publish         publishing.Config `toml:"publish"`
	Events          events.Config     `toml:"events"`
	Telemetry       telemetry.Config  `toml:"telemetry"`
	Workflow        workflow.Config   `toml:"workflow"`
	Chat            chat.Config       `toml:"chat"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the KEKARI_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvKekariEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration. Variables in .env are loaded first and
// never override the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotEnvFile, err)
	}

	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Log.Merge(&overlay.Log)
	c.Sessions.Merge(&overlay.Sessions)
	c.Classifier.Merge(&overlay.Classifier)
	c.Search.Merge(&overlay.Search)
	c.Transform.Merge(&overlay.Transform)
	c.Publish.Merge(&overlay.Publish)
	c.Events.Merge(&overlay.Events)
	c.Telemetry.Merge(&overlay.Telemetry)
	c.Workflow.Merge(&overlay.Workflow)
	c.Chat.Merge(&overlay.Chat)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Sessions.Finalize(sessionsEnv); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	if err := c.Classifier.Finalize(classifierEnv); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Search.Finalize(searchEnv); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Transform.Finalize(transformEnv); err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	if err := c.Publish.Finalize(publishEnv); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.Telemetry.Finalize(telemetryEnv); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Workflow.Finalize(workflowEnv); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Chat.Finalize(chatEnv); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvKekariShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvKekariVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvKekariEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
