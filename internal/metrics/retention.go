package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultTickLatencyBuckets cover a tick from a few milliseconds (nothing to
// do) up to the replay-stop grace delay plus two purges.
var DefaultTickLatencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// RetentionMetrics holds metrics for the retention controller.
type RetentionMetrics struct {
	// TicksTotal counts completed ticks by outcome.
	TicksTotal *prometheus.CounterVec

	// TickDuration tracks wall time from Reporting back to Idle.
	TickDuration prometheus.Histogram

	// PurgeAttemptsTotal counts purge RPCs by result.
	PurgeAttemptsTotal *prometheus.CounterVec

	// ReplaysStoppedTotal counts replay sessions stopped to clear a conflict.
	ReplaysStoppedTotal prometheus.Counter

	// SegmentsPurgedTotal counts segments the archive reported deleted.
	SegmentsPurgedTotal prometheus.Counter

	// LastPurgePosition is the most recent purge position, labelled by
	// recording.
	LastPurgePosition *prometheus.GaugeVec
}

// NewRetentionMetrics creates and registers retention metrics.
// Uses promauto for automatic registration with the default registry.
func NewRetentionMetrics() *RetentionMetrics {
	return newRetentionMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewRetentionMetricsWithRegistry creates retention metrics registered with a
// custom registry. Useful for testing to avoid conflicts with the default
// registry.
func NewRetentionMetricsWithRegistry(reg prometheus.Registerer) *RetentionMetrics {
	return newRetentionMetrics(promauto.With(reg))
}

func newRetentionMetrics(f promauto.Factory) *RetentionMetrics {
	return &RetentionMetrics{
		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "ticks_total",
				Help:      "Total number of retention ticks, broken down by outcome.",
			},
			[]string{"outcome"},
		),
		TickDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "tick_duration_seconds",
				Help:      "Retention tick duration in seconds.",
				Buckets:   DefaultTickLatencyBuckets,
			},
		),
		PurgeAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "purge_attempts_total",
				Help:      "Total number of segment purge requests, broken down by result.",
			},
			[]string{"result"},
		),
		ReplaysStoppedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "replays_stopped_total",
				Help:      "Total number of replay sessions stopped to unblock a purge.",
			},
		),
		SegmentsPurgedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "segments_purged_total",
				Help:      "Total number of segment files deleted by purges.",
			},
		),
		LastPurgePosition: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "last_purge_position",
				Help:      "New start position of the most recent successful purge.",
			},
			[]string{"recording_id"},
		),
	}
}

// RecordTick records a finished tick.
func (m *RetentionMetrics) RecordTick(outcome string, durationSeconds float64) {
	m.TicksTotal.WithLabelValues(outcome).Inc()
	m.TickDuration.Observe(durationSeconds)
}

// RecordPurgeAttempt records one purge request.
func (m *RetentionMetrics) RecordPurgeAttempt(result string) {
	m.PurgeAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordReplayStopped records a replay session stopped by the controller.
func (m *RetentionMetrics) RecordReplayStopped() {
	m.ReplaysStoppedTotal.Inc()
}

// RecordPurged records a successful purge of recordingID up to position.
func (m *RetentionMetrics) RecordPurged(recordingID string, position int64, deletedSegments int64) {
	m.LastPurgePosition.WithLabelValues(recordingID).Set(float64(position))
	if deletedSegments > 0 {
		m.SegmentsPurgedTotal.Add(float64(deletedSegments))
	}
}
