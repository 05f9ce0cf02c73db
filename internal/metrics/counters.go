package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starquake/horizon/internal/counters"
)

// CounterCollector exports every allocated slot of a counters registry as a
// gauge at scrape time.
type CounterCollector struct {
	reader    *counters.SnapshotReader
	valueDesc *prometheus.Desc
	countDesc *prometheus.Desc
}

var _ prometheus.Collector = (*CounterCollector)(nil)

// NewCounterCollector creates a collector over registry. Register it with
// prometheus.MustRegister or a custom registry.
func NewCounterCollector(registry counters.Registry) *CounterCollector {
	return &CounterCollector{
		reader: counters.NewSnapshotReader(registry),
		valueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "counters", "value"),
			"Current value of an allocated host counter.",
			[]string{"counter_id", "type_id", "label"},
			nil,
		),
		countDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "counters", "allocated"),
			"Number of allocated host counters, broken down by type.",
			[]string{"type_id"},
			nil,
		),
	}
}

func (c *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.valueDesc
	ch <- c.countDesc
}

func (c *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	entries := c.reader.Report()
	byType := make(map[int32]int)
	for _, e := range entries {
		byType[e.TypeID]++
		ch <- prometheus.MustNewConstMetric(
			c.valueDesc,
			prometheus.GaugeValue,
			float64(e.Value),
			strconv.FormatInt(int64(e.CounterID), 10),
			strconv.FormatInt(int64(e.TypeID), 10),
			e.Label,
		)
	}
	for typeID, n := range byType {
		ch <- prometheus.MustNewConstMetric(
			c.countDesc,
			prometheus.GaugeValue,
			float64(n),
			strconv.FormatInt(int64(typeID), 10),
		)
	}
}
