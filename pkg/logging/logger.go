// Package logging configures zerolog for the storefront CDN layer.
//
// Setup installs the process-wide logger once at startup. Packages then
// derive their own logger with NewLogger, which tags every event with a
// "component" field. Inside an HTTP request, FromContext returns the
// request-scoped logger installed by WithContext, so request fields such
// as request_id follow the event.
//
// Log Level Guidelines:
//
// Debug: cache hit/miss, mirror promotion, per-attempt request flow
//
// Info: server startup/shutdown, cache invalidation requests
//
// Warn: retry attempts, stale entries served after a failed fetch,
// rejected CDN payloads, mirror (Redis) errors, failed batch slots
//
// Error: fetches that failed with no stale fallback, configuration errors
//
// Context Fields:
//   - endpoint: CDN endpoint path
//   - cache_key: "cdn:"-prefixed cache key
//   - code: CDN error code (TIMEOUT, NETWORK_ERROR, HTTP_ERROR, CDN_ERROR, UNKNOWN_ERROR)
//   - status: HTTP status code
//   - attempt: retry attempt number, starting at 1
//   - ttl: cache entry TTL
//   - tags: cache tags
//   - slot: batch slot name
//   - request_id: API request id
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as it appears in config files and LOG_LEVEL.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentCache   = "cache"
	ComponentFetcher = "cdn-fetcher"
	ComponentRetry   = "retry"
	ComponentCatalog = "catalog"
	ComponentServer  = "storefront-api"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written. Unknown names mean info.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service is added as a "service" field when set.
	Service string
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global logger described by cfg and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	fields := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		fields = fields.Str("service", cfg.Service)
	}

	log.Logger = fields.Logger()
	return log.Logger
}

// ParseLevel maps a level name to zerolog.Level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn, "warning":
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a component logger from the global one.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the component logger
// when ctx carries none.
func FromContext(ctx context.Context, component string) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l.With().Str("component", component).Logger()
	}
	return NewLogger(component)
}
