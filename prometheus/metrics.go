package prometheus

import (
	"time"

	"inventory-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthErrorsCounter   prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Catalog metrics
	InventoryOperationsCounter prometheus.CounterVec
	ImportChunksCounter        prometheus.CounterVec
	ImportedRowsCounter        prometheus.Counter

	// Stock opname metrics
	OpnameOperationsCounter prometheus.CounterVec
	OpnameDifferenceGauge   prometheus.GaugeVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	// Use metric prefix from configuration
	prefix := config.Metrics.Prefix

	// HTTP request metrics
	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration
	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Authentication metrics
	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthErrorsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"reason"},
	)

	// Database operation metrics
	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	// Catalog metrics
	InventoryOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_operations_total",
			Help: "Total number of catalog operations",
		},
		[]string{"operation"},
	)

	ImportChunksCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_import_chunks_total",
			Help: "Total number of import chunk requests",
		},
		[]string{"result"},
	)

	ImportedRowsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_imported_rows_total",
			Help: "Total number of catalog rows inserted by imports",
		},
	)

	// Stock opname metrics
	OpnameOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_opname_operations_total",
			Help: "Total number of stock opname operations",
		},
		[]string{"operation"},
	)

	OpnameDifferenceGauge = *promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_opname_difference",
			Help: "Latest recorded difference between physical and system quantity",
		},
		[]string{"rack"},
	)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operationType string) func(startTime time.Time) {
	return func(startTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DbOperationDuration.WithLabelValues(operationType).Observe(duration)
	}
}

// RecordAuthError increments the counter for a failed authentication
func RecordAuthError(reason string) {
	AuthErrorsCounter.WithLabelValues(reason).Inc()
}

// RecordInventoryOperation increments the counter for catalog operations
func RecordInventoryOperation(operation string) {
	InventoryOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordOpnameOperation increments the counter for stock opname operations
func RecordOpnameOperation(operation string) {
	OpnameOperationsCounter.WithLabelValues(operation).Inc()
}
