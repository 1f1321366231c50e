package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cdn_cache_hits_total",
			Help: "Total number of CDN cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks in-memory cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cdn_cache_misses_total",
			Help: "Total number of CDN cache misses",
		},
	)

	// CacheStaleServes tracks expired entries handed out by GetStale
	CacheStaleServes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cdn_cache_stale_serves_total",
			Help: "Total number of expired cache entries served as a fallback",
		},
	)

	// CacheEntries tracks the number of live in-memory entries
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_cdn_cache_entries",
			Help: "Current number of live CDN cache entries",
		},
	)

	// CacheInvalidations tracks entries removed by tag invalidation
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_cdn_cache_invalidations_total",
			Help: "Total number of cache entries removed by tag invalidation",
		},
	)

	// CacheErrors tracks mirror operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cdn_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "load", "save", "invalidate"
	)
)
