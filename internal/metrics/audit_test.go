package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuditMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetricsWithRegistry(reg)

	m.RecordWritten(3)
	m.RecordWritten(2)
	m.RecordDropped(4)

	if got := testutil.ToFloat64(m.ObjectsWrittenTotal); got != 2 {
		t.Errorf("objects written = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsWrittenTotal); got != 5 {
		t.Errorf("events written = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.EventsDroppedTotal); got != 4 {
		t.Errorf("events dropped = %v, want 4", got)
	}

	count, err := testutil.GatherAndCount(reg, "horizon_audit_events_dropped_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Errorf("expected horizon_audit_events_dropped_total to be registered, got %d series", count)
	}
}
