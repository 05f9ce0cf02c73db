// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for the retention controller:
//   - Ticks by outcome and tick duration
//   - Purge attempts by result, segments purged, last purge position
//   - Replay sessions stopped to clear purge conflicts
//   - Archive control RPC latency by operation and status
//   - Metadata store (lease) operation latency
//   - The host counters registry, exported as gauges
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	retentionMetrics := metrics.NewRetentionMetrics()
//	controller := retention.NewController(client, cfg).WithMetrics(retentionMetrics)
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

const namespace = "horizon"

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}
