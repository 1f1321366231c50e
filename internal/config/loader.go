package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "storefront.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	if err := loadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config; values that
// do not parse are reported together.
func loadEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	setString(&cfg.Server.Port, "PORT")

	setString(&cfg.CDN.BaseURL, "CDN_BASE_URL")
	setString(&cfg.CDN.UserAgent, "CDN_USER_AGENT")
	collect(setDuration(&cfg.CDN.Timeout, "CDN_TIMEOUT"))
	collect(setInt(&cfg.CDN.RetryAttempts, "CDN_RETRY_ATTEMPTS"))
	collect(setDuration(&cfg.CDN.RetryBaseDelay, "CDN_RETRY_BASE_DELAY"))
	collect(setInt(&cfg.CDN.MaxConcurrency, "CDN_MAX_CONCURRENCY"))

	collect(setDuration(&cfg.Cache.TTL, "CDN_CACHE_TTL"))
	collect(setDuration(&cfg.Cache.StaleWhileRevalidate, "CDN_STALE_WHILE_REVALIDATE"))

	setString(&cfg.Redis.URL, "REDIS_URL")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	collect(setBool(&cfg.Logging.Pretty, "LOG_PRETTY"))

	setString(&cfg.Storefront.Currency, "STOREFRONT_CURRENCY")
	setString(&cfg.Storefront.Locale, "STOREFRONT_LOCALE")

	return errors.Join(errs...)
}

// validate checks that required fields are set and in range.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.CDN.BaseURL == "" {
		return errors.New("cdn.base_url is required")
	}
	if u, err := url.Parse(cfg.CDN.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("cdn.base_url must be an absolute http(s) URL (got %q)", cfg.CDN.BaseURL)
	}
	if cfg.CDN.Timeout <= 0 {
		return errors.New("cdn.timeout must be > 0")
	}
	if cfg.CDN.RetryAttempts < 1 {
		return errors.New("cdn.retry_attempts must be >= 1")
	}
	if cfg.CDN.RetryBaseDelay < 0 {
		return errors.New("cdn.retry_base_delay must be >= 0")
	}
	if cfg.CDN.MaxConcurrency < 0 {
		return errors.New("cdn.max_concurrency must be >= 0")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}
	if cfg.Cache.StaleWhileRevalidate < 0 {
		return errors.New("cache.stale_while_revalidate must be >= 0")
	}
	if _, err := currency.ParseISO(strings.ToUpper(cfg.Storefront.Currency)); err != nil {
		return fmt.Errorf("storefront.currency %q is not an ISO 4217 code", cfg.Storefront.Currency)
	}
	if _, err := language.Parse(cfg.Storefront.Locale); err != nil {
		return fmt.Errorf("storefront.locale %q is not a BCP 47 tag", cfg.Storefront.Locale)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

func setBool(dst *bool, key string) error {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// setDuration accepts Go durations ("30s") or whole seconds ("30").
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
