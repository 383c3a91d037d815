// Package metrics registers the Prometheus metrics used by the resolvers.
// Import this package (via blank import) from the server entry point to
// register all metrics before the /metrics handler is mounted.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LookupsTotal counts resolver lookups labelled by component
	// ("vehicles", "geo", "routing", "country") and outcome
	// ("success", "error", "not_found").
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelrouter_lookups_total",
			Help: "Total resolver lookups by component and outcome.",
		},
		[]string{"component", "status"},
	)

	// LookupDuration observes end-to-end resolver lookup latency in seconds,
	// including cache checks and provider round-trips.
	LookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fuelrouter_lookup_duration_seconds",
			Help:    "End-to-end resolver lookup duration in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"component"},
	)

	// CacheHits counts disk-cache hits per category.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelrouter_cache_hits_total",
			Help: "Total cache hits by category.",
		},
		[]string{"category"},
	)

	// CacheMisses counts disk-cache misses per category.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelrouter_cache_misses_total",
			Help: "Total cache misses by category.",
		},
		[]string{"category"},
	)

	// RoutingEndpointFailures counts failed attempts against individual
	// routing endpoints before fallback moved to the next one.
	RoutingEndpointFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelrouter_routing_endpoint_failures_total",
			Help: "Total failed routing endpoint attempts by endpoint.",
		},
		[]string{"endpoint"},
	)

	// KnowledgeErrors counts knowledge-provider failures broken down by
	// provider and error type ("transport", "malformed", "empty").
	KnowledgeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelrouter_knowledge_errors_total",
			Help: "Total knowledge provider errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)
