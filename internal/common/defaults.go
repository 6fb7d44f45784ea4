// Package common provides shared utilities and default configuration.
package common

import (
	"time"
)

// DefaultUserAgent mimics a common desktop browser so fetches are not
// trivially blocked by user-agent sniffing.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultConfig returns the baseline configuration before any file, env or
// flag overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8085,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/colligo",
				ResetOnStartup: false,
			},
		},
		Queue: QueueConfig{
			Name:              "scrape",
			PollInterval:      500 * time.Millisecond,
			Concurrency:       1,
			VisibilityTimeout: 2 * time.Minute,
			MaxAttempts:       3,
			RetryBaseDelay:    2 * time.Second,
		},
		Scraper: ScraperConfig{
			UserAgent:      DefaultUserAgent,
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024,
			HostInterval:   time.Second,
		},
		Sweep: SweepConfig{
			Enabled:        true,
			Schedule:       "@every 1m",
			StuckThreshold: 10 * time.Minute,
		},
		Events: EventsConfig{
			Enabled:          true,
			ThrottleInterval: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}
