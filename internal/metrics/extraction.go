package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "visearch"

// Feature extraction metrics.
var (
	ExtractionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_requests_total",
			Help:      "Total number of feature extraction requests",
		},
		[]string{"driver", "status"},
	)

	ExtractionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_request_duration_seconds",
			Help:      "Feature extraction duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"driver"},
	)

	ExtractionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Total feature extraction errors",
		},
		[]string{"driver", "error_type"},
	)

	ExtractionRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_retries_total",
			Help:      "Feature extraction attempts beyond the first",
		},
		[]string{"driver"},
	)

	FeatureCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_cache_total",
			Help:      "Feature cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Matching metrics.
var (
	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10, 20},
		},
	)

	SearchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_outcomes_total",
			Help:      "Search requests by outcome",
		},
		[]string{"outcome"},
	)

	InvalidVectorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_vectors_total",
			Help:      "Catalog comparisons that degraded to zero similarity",
		},
	)

	DimensionMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dimension_mismatch_total",
			Help:      "Searches whose query dimensionality differs from the catalog",
		},
	)

	CatalogEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_entries",
			Help:      "Catalog entries loaded at startup",
		},
		[]string{"state"}, // "scoreable" / "unscoreable"
	)
)

var registerOnce sync.Once

// Register registers all service metrics with the default registry.
// Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			ExtractionRequestsTotal,
			ExtractionRequestDuration,
			ExtractionErrorsTotal,
			ExtractionRetriesTotal,
			FeatureCacheTotal,
			SearchResults,
			SearchOutcomesTotal,
			InvalidVectorsTotal,
			DimensionMismatchTotal,
			CatalogEntries,
		)
	})
}
