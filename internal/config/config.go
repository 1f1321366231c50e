// Package config provides hierarchical configuration loading for the
// storefront API. Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the storefront API.
type Config struct {
	Server     Server     `yaml:"server"`
	CDN        CDN        `yaml:"cdn"`
	Cache      Cache      `yaml:"cache"`
	Redis      Redis      `yaml:"redis"`
	Logging    Logging    `yaml:"logging"`
	Storefront Storefront `yaml:"storefront"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CDN holds upstream content endpoint configuration.
type CDN struct {
	BaseURL        string        `yaml:"base_url"`
	UserAgent      string        `yaml:"user_agent"`
	Timeout        time.Duration `yaml:"timeout"`          // per attempt
	RetryAttempts  int           `yaml:"retry_attempts"`   // total executions, not extra retries
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"` // doubled after each failure
	MaxConcurrency int           `yaml:"max_concurrency"`  // batch slots in flight; 0 = unlimited
}

// Cache holds the default cache policy.
type Cache struct {
	TTL                  time.Duration `yaml:"ttl"`
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate"`
}

// Redis holds the optional shared cache mirror. Empty URL disables it.
type Redis struct {
	URL string `yaml:"url"`
}

// Logging holds logger configuration.
type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Storefront holds display settings.
type Storefront struct {
	Currency string `yaml:"currency"`
	Locale   string `yaml:"locale"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		CDN: CDN{
			BaseURL:        "https://cdn.storefront.example",
			UserAgent:      "storefront-cdn/0.1.0",
			Timeout:        10 * time.Second,
			RetryAttempts:  3,
			RetryBaseDelay: time.Second,
		},
		Cache: Cache{
			TTL:                  5 * time.Minute,
			StaleWhileRevalidate: 10 * time.Minute,
		},
		Logging: Logging{
			Level: "info",
		},
		Storefront: Storefront{
			Currency: "USD",
			Locale:   "en-US",
		},
	}
}
