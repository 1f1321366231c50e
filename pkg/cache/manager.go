package cache

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/storefront-cdn/pkg/logging"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Stats is a point-in-time view of the live cache.
type Stats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager is an in-memory TTL cache with tag invalidation.
//
// Entries past their TTL are invisible to Get and are moved out of the
// live map on first read. They are kept aside until their
// stale-while-revalidate window closes so GetStale can still serve them
// when a refresh fails.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*Entry
	stale   map[string]*Entry
	now     func() time.Time
	logger  zerolog.Logger
}

// NewManager creates an empty cache manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[string]*Entry),
		stale:   make(map[string]*Entry),
		now:     time.Now,
		logger:  logging.NewLogger(logging.ComponentCache),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set stores data under key, replacing any existing entry.
func (m *Manager) Set(key string, data []byte, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.entries[key] = &Entry{
		Data:     data,
		StoredAt: now,
		TTL:      cfg.TTL,
		StaleFor: cfg.StaleWhileRevalidate,
		Tags:     uniqueTags(cfg.Tags),
	}
	delete(m.stale, key)
	m.pruneStaleLocked(now)
	CacheEntries.Set(float64(len(m.entries)))

	m.logger.Debug().
		Str("cache_key", key).
		Dur("ttl", cfg.TTL).
		Strs("tags", cfg.Tags).
		Msg("Cache set")
}

// Get returns the data stored under key while it is fresh.
// An expired entry is removed as a side effect and reported as a miss.
func (m *Manager) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	now := m.now()
	if entry.IsExpired(now) {
		delete(m.entries, key)
		if entry.IsUsableStale(now) {
			m.stale[key] = entry
		}
		CacheEntries.Set(float64(len(m.entries)))
		CacheMisses.Inc()
		m.logger.Debug().Str("cache_key", key).Msg("Cache entry expired")
		return nil, false
	}

	CacheHits.WithLabelValues("memory").Inc()
	return entry.Data, true
}

// GetStale returns the data stored under key, fresh or expired, as long
// as it is inside its stale-while-revalidate window.
func (m *Manager) GetStale(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry, ok := m.entries[key]
	if !ok {
		entry, ok = m.stale[key]
	}
	if !ok {
		return nil, false
	}
	if !entry.IsUsableStale(now) {
		delete(m.stale, key)
		return nil, false
	}
	if entry.IsExpired(now) {
		CacheStaleServes.Inc()
	}
	return entry.Data, true
}

// Entry returns a copy of the live entry metadata for key.
func (m *Manager) Entry(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Delete removes key, including an expired copy kept for stale fallback.
// It reports whether a live entry was removed.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[key]
	delete(m.entries, key)
	delete(m.stale, key)
	CacheEntries.Set(float64(len(m.entries)))
	return ok
}

// InvalidateByTag deletes every entry carrying tag and returns how many
// live entries were removed.
func (m *Manager) InvalidateByTag(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, entry := range m.entries {
		if entry.HasTag(tag) {
			delete(m.entries, key)
			removed++
		}
	}
	for key, entry := range m.stale {
		if entry.HasTag(tag) {
			delete(m.stale, key)
		}
	}

	CacheInvalidations.Add(float64(removed))
	CacheEntries.Set(float64(len(m.entries)))

	m.logger.Debug().
		Str("tag", tag).
		Int("removed", removed).
		Msg("Cache invalidated by tag")

	return removed
}

// Clear drops all entries.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.stale = make(map[string]*Entry)
	CacheEntries.Set(0)
}

// Stats returns the number and keys of live entries, sorted.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return Stats{
		Size: len(keys),
		Keys: keys,
	}
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

func (m *Manager) pruneStaleLocked(now time.Time) {
	for key, entry := range m.stale {
		if !entry.IsUsableStale(now) {
			delete(m.stale, key)
		}
	}
}
