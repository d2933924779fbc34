// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RecommendRequests.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInternal = "internal_error"
)

var (
	// RecommendRequests counts orchestrator calls by outcome.
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_recommend_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // ok, not_found, internal_error
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osusume_recommend_duration_seconds",
			Help:    "End-to-end recommendation latency including enrichment",
			Buckets: prometheus.DefBuckets,
		},
	)

	// EnrichmentLookups counts per-title metadata lookups by outcome.
	EnrichmentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_enrichment_lookups_total",
			Help: "Total number of poster lookups by outcome",
		},
		[]string{"outcome"}, // success, no_image, timeout, bad_status, malformed, circuit_open, cancelled, error
	)

	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osusume_enrichment_duration_seconds",
			Help:    "Latency of single poster lookups against the metadata service",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	EnrichmentInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osusume_enrichment_in_flight",
			Help: "Poster lookups currently holding an outbound slot",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osusume_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osusume_catalog_items",
			Help: "Number of items in the loaded catalog",
		},
	)
)
