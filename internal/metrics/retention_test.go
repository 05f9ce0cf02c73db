package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestNewRetentionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetentionMetricsWithRegistry(reg)

	m.RecordTick("purged", 0.01)
	m.RecordPurgeAttempt("ok")
	m.RecordReplayStopped()
	m.RecordPurged("3", 1024, 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expected := map[string]bool{
		"horizon_retention_ticks_total":           false,
		"horizon_retention_tick_duration_seconds": false,
		"horizon_retention_purge_attempts_total":  false,
		"horizon_retention_replays_stopped_total": false,
		"horizon_retention_segments_purged_total": false,
		"horizon_retention_last_purge_position":   false,
	}
	for _, family := range families {
		if _, ok := expected[family.GetName()]; ok {
			expected[family.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected metric %s to be registered", name)
		}
	}
}

func TestRetentionMetrics_RecordTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetentionMetricsWithRegistry(reg)

	m.RecordTick("nothing_to_purge", 0.002)
	m.RecordTick("nothing_to_purge", 0.003)
	m.RecordTick("failed", 0.5)

	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("nothing_to_purge")); got != 2 {
		t.Errorf("nothing_to_purge ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TicksTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed ticks = %v, want 1", got)
	}

	var hist io_prometheus_client.Metric
	if err := m.TickDuration.Write(&hist); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if got := hist.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("tick duration samples = %d, want 3", got)
	}
}

func TestRetentionMetrics_RecordPurged(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetentionMetricsWithRegistry(reg)

	m.RecordPurged("7", 4096, 2)
	m.RecordPurged("7", 8192, 0)

	if got := testutil.ToFloat64(m.LastPurgePosition.WithLabelValues("7")); got != 8192 {
		t.Errorf("last purge position = %v, want 8192", got)
	}
	if got := testutil.ToFloat64(m.SegmentsPurgedTotal); got != 2 {
		t.Errorf("segments purged = %v, want 2", got)
	}
}

func TestRetentionMetrics_PurgeAttempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetentionMetricsWithRegistry(reg)

	m.RecordPurgeAttempt("conflict")
	m.RecordPurgeAttempt("ok")
	m.RecordReplayStopped()

	if got := testutil.ToFloat64(m.PurgeAttemptsTotal.WithLabelValues("conflict")); got != 1 {
		t.Errorf("conflict attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PurgeAttemptsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ReplaysStoppedTotal); got != 1 {
		t.Errorf("replays stopped = %v, want 1", got)
	}
}
