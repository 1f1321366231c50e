package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for CDN fetch operations.
var (
	cdnRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cdn_requests_total",
		Help: "Total CDN fetches by endpoint and outcome (hit, miss, stale, error)",
	}, []string{"endpoint", "outcome"})

	cdnRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_cdn_request_duration_seconds",
		Help:    "CDN network round-trip duration in seconds by endpoint",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	cdnErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cdn_errors_total",
		Help: "Total CDN errors by code",
	}, []string{"code"})

	cdnRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cdn_retries_total",
		Help: "Total number of retry attempts",
	})

	cdnRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_cdn_retry_backoff_seconds",
		Help:    "Backoff duration before each retry",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	cdnRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_cdn_retry_exhausted_total",
		Help: "Total number of operations that failed after every attempt",
	})
)
