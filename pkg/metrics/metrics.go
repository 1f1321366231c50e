// Package metrics exposes the Prometheus registry used by the storefront
// CDN layer. Metrics are defined in their owning packages (cache, client)
// via promauto to keep those packages free of a shared dependency; this
// package serves them and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all storefront metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - storefront_cdn_cache_hits_total{layer="memory|redis"} (Counter): Cache hits by layer
//   - storefront_cdn_cache_misses_total (Counter): Lookups that found no fresh entry
//   - storefront_cdn_cache_stale_serves_total (Counter): Expired entries returned as error fallback
//   - storefront_cdn_cache_entries (Gauge): Live in-memory entries
//   - storefront_cdn_cache_invalidations_total (Counter): Entries removed by tag invalidation
//   - storefront_cdn_cache_errors_total{operation} (Counter): Redis mirror errors
//
// Request Metrics (pkg/client):
//   - storefront_cdn_requests_total{endpoint, outcome} (Counter): Fetches by outcome (hit, miss, stale, error)
//   - storefront_cdn_request_duration_seconds{endpoint} (Histogram): Network round-trip duration
//   - storefront_cdn_errors_total{code} (Counter): Failures by CDN error code
//
// Retry Metrics (pkg/client):
//   - storefront_cdn_retries_total (Counter): Retry attempts
//   - storefront_cdn_retry_backoff_seconds (Histogram): Wait before each retry
//   - storefront_cdn_retry_exhausted_total (Counter): Operations that used every attempt
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(storefront_cdn_cache_hits_total[5m])) /
//   (sum(rate(storefront_cdn_cache_hits_total[5m])) + sum(rate(storefront_cdn_cache_misses_total[5m])))
//
//   # Stale Serve Rate
//   sum(rate(storefront_cdn_requests_total{outcome="stale"}[5m]))
//
//   # Error Rate by Code
//   sum by (code) (rate(storefront_cdn_errors_total[5m]))
//
//   # P95 CDN Latency
//   histogram_quantile(0.95, rate(storefront_cdn_request_duration_seconds_bucket[5m]))
