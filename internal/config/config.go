// Package config loads and validates service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second

	defaultProviderTimeout = 30 * time.Second
	defaultPollInterval    = 30 * time.Second
	defaultQueueBatchSize  = 10
	defaultPageDelay       = time.Second
	defaultResultsPerPage  = 10
	defaultDetailPageSize  = 100
)

// Config is the root configuration for the leadharvest service.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Serper   ProviderConfig `yaml:"serper"`
	Truelist ProviderConfig `yaml:"truelist"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig configures the Redis connection used for operational counters.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig configures an external HTTP provider (search or
// email verification).
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// WorkerConfig configures the external driver and per-pass sizing.
// PollInterval belongs to the driver binary only; the core components
// never sleep between advances.
type WorkerConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	QueueBatchSize int           `yaml:"queue_batch_size"`
	PageDelay      time.Duration `yaml:"page_delay"`
	ResultsPerPage int           `yaml:"results_per_page"`
	DetailPageSize int           `yaml:"detail_page_size"`
}

// Load reads configuration from a YAML file, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Serper.BaseURL == "" {
		cfg.Serper.BaseURL = "https://google.serper.dev"
	}
	if cfg.Serper.Timeout == 0 {
		cfg.Serper.Timeout = defaultProviderTimeout
	}
	if cfg.Truelist.BaseURL == "" {
		cfg.Truelist.BaseURL = "https://api.truelist.io"
	}
	if cfg.Truelist.Timeout == 0 {
		cfg.Truelist.Timeout = defaultProviderTimeout
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = defaultPollInterval
	}
	if cfg.Worker.QueueBatchSize == 0 {
		cfg.Worker.QueueBatchSize = defaultQueueBatchSize
	}
	if cfg.Worker.PageDelay == 0 {
		cfg.Worker.PageDelay = defaultPageDelay
	}
	if cfg.Worker.ResultsPerPage == 0 {
		cfg.Worker.ResultsPerPage = defaultResultsPerPage
	}
	if cfg.Worker.DetailPageSize == 0 {
		cfg.Worker.DetailPageSize = defaultDetailPageSize
	}
}

func overrideWithEnvVars(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DBName = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("SERPER_API_KEY"); v != "" {
		cfg.Serper.APIKey = v
	}
	if v := os.Getenv("TRUELIST_API_KEY"); v != "" {
		cfg.Truelist.APIKey = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Server.Address = ":" + v
	}
	if v := os.Getenv("APP_DEBUG"); v != "" {
		cfg.Debug = parseBool(v)
	}
}

// Validate checks the configuration. Missing provider API keys are a
// configuration failure surfaced before any external call is attempted.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Serper.APIKey == "" {
		return fmt.Errorf("%w: serper.api_key", domain.ErrMissingAPIKey)
	}
	if c.Truelist.APIKey == "" {
		return fmt.Errorf("%w: truelist.api_key", domain.ErrMissingAPIKey)
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker.poll_interval must be positive, got %v", c.Worker.PollInterval)
	}
	if c.Worker.QueueBatchSize <= 0 {
		return fmt.Errorf("worker.queue_batch_size must be positive, got %d", c.Worker.QueueBatchSize)
	}
	return nil
}

// parseBool returns true for "true", "1", "yes" (case-insensitive).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
