package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Media ingest metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Ingestion outcomes per entry shape
	IngestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "ingestions_total",
			Help:      "Total ingestion attempts by flow and outcome",
		},
		[]string{"flow", "outcome"},
	)

	IngestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "ingest_bytes_total",
			Help:      "Total source bytes committed",
		},
		[]string{"mime_type"},
	)

	// Storage operations counter
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "storage_operations_total",
			Help:      "Total blob storage operations",
		},
		[]string{"operation", "status"},
	)

	// Storage operation duration
	StorageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "storage_duration_seconds",
			Help:      "Blob storage operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	// Presign URL duration
	PresignDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "presign_duration_seconds",
			Help:      "Presigned URL generation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	RenditionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "rendition_duration_seconds",
			Help:      "Time to derive and store a full rendition set",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// Background side effects
	SideEffectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "side_effects_total",
			Help:      "Background side-effect tasks by kind and status",
		},
		[]string{"kind", "status"},
	)

	// Sweeper removals
	SweptObjectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "media_ingest",
			Name:      "swept_objects_total",
			Help:      "Objects removed by out-of-band sweeps",
		},
		[]string{"sweep"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordIngestion records one ingestion outcome; bytes are counted only for committed ones.
func RecordIngestion(flow, outcome, mimeType string, bytes int64) {
	IngestionsTotal.WithLabelValues(flow, outcome).Inc()
	if outcome == "committed" {
		IngestBytesTotal.WithLabelValues(mimeType).Add(float64(bytes))
	}
}

// RecordStorageOperation records a blob storage operation
func RecordStorageOperation(operation, status string, durationSec float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageDuration.WithLabelValues(operation).Observe(durationSec)
}

// RecordPresign records presigned URL generation
func RecordPresign(durationSec float64) {
	PresignDuration.Observe(durationSec)
}

func RecordRendition(durationSec float64) {
	RenditionDuration.Observe(durationSec)
}

func RecordSideEffect(kind, status string) {
	SideEffectsTotal.WithLabelValues(kind, status).Inc()
}

func RecordSwept(sweep string, count int) {
	SweptObjectsTotal.WithLabelValues(sweep).Add(float64(count))
}
