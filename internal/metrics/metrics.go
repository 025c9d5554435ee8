// Package metrics provides Prometheus metrics for remision batch validation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"arkik/internal"
)

var (
	// BatchesTotal counts processed batch files by outcome
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "batch",
			Name:      "files_total",
			Help:      "Total number of batch files processed by outcome",
		},
		[]string{"plant_id", "outcome"},
	)

	// BatchDuration tracks end-to-end validation time per batch
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arkik",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Duration of batch validation in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"plant_id"},
	)

	RowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "validation",
			Name:      "rows_total",
			Help:      "Total number of validated rows by status",
		},
		[]string{"plant_id", "status"},
	)

	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "validation",
			Name:      "errors_total",
			Help:      "Total number of row validation errors by type",
		},
		[]string{"plant_id", "error_type"},
	)

	// ResolutionCacheLookups tracks the per-batch resolved combination cache
	ResolutionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "validation",
			Name:      "resolution_cache_lookups_total",
			Help:      "Resolution cache lookups by result",
		},
		[]string{"plant_id", "result"},
	)

	PriceMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "pricing",
			Name:      "matches_total",
			Help:      "Price selections by strategy",
		},
		[]string{"plant_id", "strategy"},
	)

	ReferenceQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arkik",
			Subsystem: "reference",
			Name:      "queries_total",
			Help:      "Bulk reference queries issued",
		},
		[]string{"plant_id"},
	)
)

// ObserveBatch records the outcome of one validated batch.
func ObserveBatch(plantID string, result internal.BatchResult, elapsed time.Duration) {
	BatchDuration.WithLabelValues(plantID).Observe(elapsed.Seconds())

	for status, n := range result.CountByStatus() {
		RowsTotal.WithLabelValues(plantID, string(status)).Add(float64(n))
	}
	for _, e := range result.Errors {
		ErrorsTotal.WithLabelValues(plantID, string(e.ErrorType)).Inc()
	}

	stats := result.Stats
	ResolutionCacheLookups.WithLabelValues(plantID, "hit").Add(float64(stats.CacheHits))
	ResolutionCacheLookups.WithLabelValues(plantID, "miss").Add(float64(stats.CacheMisses))
	ReferenceQueries.WithLabelValues(plantID).Add(float64(stats.DBQueries))

	pm := stats.PriceMatches
	PriceMatches.WithLabelValues(plantID, "direct").Add(float64(pm.Direct))
	PriceMatches.WithLabelValues(plantID, "client_filtered").Add(float64(pm.ClientFiltered))
	PriceMatches.WithLabelValues(plantID, "site_filtered").Add(float64(pm.SiteFiltered))
	PriceMatches.WithLabelValues(plantID, "fallback").Add(float64(pm.Fallback))
	PriceMatches.WithLabelValues(plantID, "quote_fallback").Add(float64(pm.QuoteFallback))
}
