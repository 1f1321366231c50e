package cache

import "time"

const (
	// DefaultTTL is used when a request carries no cache policy
	DefaultTTL = 5 * time.Minute

	// DefaultStaleWhileRevalidate is how long expired data stays available for error fallback
	DefaultStaleWhileRevalidate = 10 * time.Minute
)

// Config is the per-request cache policy supplied by the calling accessor.
type Config struct {
	// TTL is how long the response is served from cache
	TTL time.Duration

	// StaleWhileRevalidate is the window after TTL in which the response
	// may still replace a failed fetch
	StaleWhileRevalidate time.Duration

	// Tags are invalidation labels, unrelated to lookup
	Tags []string
}

// DefaultConfig returns the fallback cache policy.
func DefaultConfig() Config {
	return Config{
		TTL:                  DefaultTTL,
		StaleWhileRevalidate: DefaultStaleWhileRevalidate,
	}
}

// WithTags returns a copy of c with extra tags appended.
func (c Config) WithTags(tags ...string) Config {
	merged := make([]string, 0, len(c.Tags)+len(tags))
	merged = append(merged, c.Tags...)
	merged = append(merged, tags...)
	c.Tags = uniqueTags(merged)
	return c
}
