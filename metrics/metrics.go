// Package metrics provides Prometheus metrics for the medfinder API.
//
// HTTP traffic:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Search engine and catalog:
//   - search_queries_total / search_query_duration_seconds by operation
//   - search_cache_results_total by result (hit, miss)
//   - catalog_* gauges describing the active index, catalog_reloads_total by outcome
//
// All metrics are registered with the Prometheus default registry
// during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Number of clients with a rate limiter bucket",
		},
	)

	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search engine queries by operation",
		},
		[]string{"operation"},
	)

	SearchQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_query_duration_seconds",
			Help:    "Search engine query latency, cache hits included",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .2, .5},
		},
		[]string{"operation"},
	)

	SearchCacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_results_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"result"},
	)

	CatalogProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_products",
			Help: "Products in the active index",
		},
	)

	CatalogParseWarnings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_parse_warnings",
			Help: "Composition parse warnings in the active index",
		},
	)

	CatalogIndexBuildSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_index_build_seconds",
			Help: "Time spent building the active index",
		},
	)

	CatalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reloads_total",
			Help: "Catalog loads by outcome (success, failure, unchanged)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(SearchQueriesTotal)
	prometheus.MustRegister(SearchQueryDuration)
	prometheus.MustRegister(SearchCacheResults)
	prometheus.MustRegister(CatalogProducts)
	prometheus.MustRegister(CatalogParseWarnings)
	prometheus.MustRegister(CatalogIndexBuildSeconds)
	prometheus.MustRegister(CatalogReloadsTotal)
}
