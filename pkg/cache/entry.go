package cache

import (
	"slices"
	"time"
)

// Entry is a cached CDN payload.
type Entry struct {
	// Data is the unwrapped JSON payload
	Data []byte `json:"data"`

	// StoredAt is when the payload was written
	StoredAt time.Time `json:"stored_at"`

	// TTL is how long the entry is served as fresh
	TTL time.Duration `json:"ttl"`

	// StaleFor is how long after TTL the entry may still back an error fallback
	StaleFor time.Duration `json:"stale_for"`

	// Tags group entries for bulk invalidation
	Tags []string `json:"tags,omitempty"`
}

// IsExpired reports whether the entry is past its TTL at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.Sub(e.StoredAt) > e.TTL
}

// IsUsableStale reports whether the entry may still substitute for a failed fetch.
func (e *Entry) IsUsableStale(now time.Time) bool {
	return now.Sub(e.StoredAt) <= e.TTL+e.StaleFor
}

// Remaining returns the fresh lifetime left at now.
// Returns 0 if already expired.
func (e *Entry) Remaining(now time.Time) time.Duration {
	left := e.StoredAt.Add(e.TTL).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// HasTag reports whether the entry carries tag.
func (e *Entry) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// uniqueTags returns tags with duplicates and empty strings removed, order kept.
func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
