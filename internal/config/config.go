package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the assistant service.
// Environment variables are parsed from the ATRIUM_ prefix,
// e.g. ATRIUM_HTTP_PORT, ATRIUM_DB_DRIVER.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/atrium.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Derived-work dispatcher
	QueueSize   int `envconfig:"QUEUE_SIZE" default:"256"`
	Workers     int `envconfig:"WORKERS" default:"4"`
	TaskTimeout int `envconfig:"TASK_TIMEOUT_SECONDS" default:"30"`

	// Memory index recency window, the unit of context fed to the LLM
	// assembly downstream.
	MemoryWindowDays int `envconfig:"MEMORY_WINDOW_DAYS" default:"90"`

	// Automation orchestrator
	AutomationLookbackDays int  `envconfig:"AUTOMATION_LOOKBACK_DAYS" default:"30"`
	AutomationGuard        bool `envconfig:"AUTOMATION_GUARD" default:"true"`

	// Scheduled alert rules
	WatchdogSchedule   string `envconfig:"WATCHDOG_SCHEDULE" default:"@hourly"`
	WatchdogWindowDays int    `envconfig:"WATCHDOG_WINDOW_DAYS" default:"7"`
}

// ResolveDefaults validates driver selection and derived settings.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"sqlite": true, "postgres": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return nil
}

// New creates a Config by parsing ATRIUM_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("ATRIUM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns a config suitable for tests: in-process SQLite,
// tight queue, automation guard on.
func NewForTesting() *Config {
	return &Config{
		Environment:            EnvTesting,
		LogLevel:               "debug",
		HTTPPort:               8080,
		DBDriver:               "sqlite",
		SQLitePath:             ":memory:",
		QueueSize:              16,
		Workers:                2,
		TaskTimeout:            5,
		MemoryWindowDays:       90,
		AutomationLookbackDays: 30,
		AutomationGuard:        true,
		WatchdogSchedule:       "@hourly",
		WatchdogWindowDays:     7,
	}
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
