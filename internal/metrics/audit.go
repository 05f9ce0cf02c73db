package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AuditMetrics holds metrics for the audit event archive.
type AuditMetrics struct {
	// EventsWrittenTotal counts events stored in audit objects.
	EventsWrittenTotal prometheus.Counter

	// ObjectsWrittenTotal counts audit objects written.
	ObjectsWrittenTotal prometheus.Counter

	// EventsDroppedTotal counts events discarded because the buffer was
	// full while the store was failing.
	EventsDroppedTotal prometheus.Counter
}

// NewAuditMetrics creates and registers audit metrics with the default
// registry.
func NewAuditMetrics() *AuditMetrics {
	return newAuditMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewAuditMetricsWithRegistry creates audit metrics registered with a custom
// registry.
func NewAuditMetricsWithRegistry(reg prometheus.Registerer) *AuditMetrics {
	return newAuditMetrics(promauto.With(reg))
}

func newAuditMetrics(f promauto.Factory) *AuditMetrics {
	return &AuditMetrics{
		EventsWrittenTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_written_total",
			Help:      "Total number of tick events written to audit objects.",
		}),
		ObjectsWrittenTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "objects_written_total",
			Help:      "Total number of audit objects written.",
		}),
		EventsDroppedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_dropped_total",
			Help:      "Total number of tick events dropped because the audit buffer was full.",
		}),
	}
}

// RecordWritten records one audit object holding n events.
func (m *AuditMetrics) RecordWritten(n int) {
	m.ObjectsWrittenTotal.Inc()
	m.EventsWrittenTotal.Add(float64(n))
}

// RecordDropped records n discarded events.
func (m *AuditMetrics) RecordDropped(n int) {
	m.EventsDroppedTotal.Add(float64(n))
}
