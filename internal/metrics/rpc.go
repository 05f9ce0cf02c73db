package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultRPCLatencyBuckets are latency buckets for control-plane requests,
// which are typically fast (sub-ms to tens of ms).
var DefaultRPCLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.002,  // 2ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
}

// OperationMetrics tracks request latency and counts for one remote
// dependency, broken down by operation and status.
type OperationMetrics struct {
	LatencyHistogram *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
}

// NewArchiveMetrics creates and registers archive control RPC metrics.
func NewArchiveMetrics() *OperationMetrics {
	return newOperationMetrics(promauto.With(prometheus.DefaultRegisterer), "archive", "archive control request")
}

// NewArchiveMetricsWithRegistry creates archive control RPC metrics
// registered with a custom registry.
func NewArchiveMetricsWithRegistry(reg prometheus.Registerer) *OperationMetrics {
	return newOperationMetrics(promauto.With(reg), "archive", "archive control request")
}

// NewMetadataMetrics creates and registers metadata store metrics.
func NewMetadataMetrics() *OperationMetrics {
	return newOperationMetrics(promauto.With(prometheus.DefaultRegisterer), "metadata", "metadata store operation")
}

// NewMetadataMetricsWithRegistry creates metadata store metrics registered
// with a custom registry.
func NewMetadataMetricsWithRegistry(reg prometheus.Registerer) *OperationMetrics {
	return newOperationMetrics(promauto.With(reg), "metadata", "metadata store operation")
}

// NewObjectStoreMetrics creates and registers audit object store metrics.
func NewObjectStoreMetrics() *OperationMetrics {
	return newOperationMetrics(promauto.With(prometheus.DefaultRegisterer), "objectstore", "object store operation")
}

// NewObjectStoreMetricsWithRegistry creates object store metrics
// registered with a custom registry.
func NewObjectStoreMetricsWithRegistry(reg prometheus.Registerer) *OperationMetrics {
	return newOperationMetrics(promauto.With(reg), "objectstore", "object store operation")
}

func newOperationMetrics(f promauto.Factory, subsystem, what string) *OperationMetrics {
	return &OperationMetrics{
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operation_latency_seconds",
				Help:      "Latency in seconds of each " + what + ", broken down by operation and status.",
				Buckets:   DefaultRPCLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "operations_total",
				Help:      "Total number of " + what + "s, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
	}
}

// RecordOperation records an operation latency and increments the request
// counter.
func (m *OperationMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}
