package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Queue       QueueConfig   `toml:"queue"`
	Scraper     ScraperConfig `toml:"scraper"`
	Sweep       SweepConfig   `toml:"sweep"`
	Events      EventsConfig  `toml:"events"`
	Logging     LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	Name              string        `toml:"name"`               // Key prefix in Badger
	PollInterval      time.Duration `toml:"poll_interval"`      // How often workers poll for messages
	Concurrency       int           `toml:"concurrency"`        // Number of worker goroutines (1 by design)
	VisibilityTimeout time.Duration `toml:"visibility_timeout"` // Redelivery window for claimed messages
	MaxAttempts       int           `toml:"max_attempts"`       // Delivery attempts before final failure
	RetryBaseDelay    time.Duration `toml:"retry_base_delay"`   // First retry delay; doubles per attempt
}

type ScraperConfig struct {
	UserAgent      string        `toml:"user_agent"`      // Sent on every fetch
	RequestTimeout time.Duration `toml:"request_timeout"` // Per-fetch deadline
	MaxBodySize    int64         `toml:"max_body_size"`   // Response body cap in bytes
	HostInterval   time.Duration `toml:"host_interval"`   // Minimum spacing between fetches to one host
}

// SweepConfig controls the stuck-page reconciliation sweep.
type SweepConfig struct {
	Enabled        bool          `toml:"enabled"`
	Schedule       string        `toml:"schedule"`        // Cron schedule, e.g. "@every 1m"
	StuckThreshold time.Duration `toml:"stuck_threshold"` // Processing pages older than this are failed
}

// EventsConfig controls the websocket page-event stream.
type EventsConfig struct {
	Enabled          bool          `toml:"enabled"`
	ThrottleInterval time.Duration `toml:"throttle_interval"` // Per-event-type broadcast throttle
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// LoadFromFiles loads configuration with precedence:
// defaults -> file(s) in order -> COLLIGO_* environment -> CLI flag overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line flag values on top of the loaded
// configuration. Zero values mean "not set".
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("COLLIGO_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("COLLIGO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("COLLIGO_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("COLLIGO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("COLLIGO_ENVIRONMENT"); v != "" {
		config.Environment = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be at least 1, got %d", c.Queue.Concurrency)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max_attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage badger path is required")
	}
	return nil
}
