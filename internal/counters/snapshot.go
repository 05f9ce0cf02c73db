package counters

// Entry is one allocated slot captured by a report.
type Entry struct {
	CounterID int32  `json:"counterId"`
	TypeID    int32  `json:"typeId"`
	Label     string `json:"label"`
	Value     int64  `json:"value"`
}

// SnapshotReader renders point-in-time reports of a registry.
type SnapshotReader struct {
	registry Registry
}

// NewSnapshotReader creates a reader over registry.
func NewSnapshotReader(registry Registry) *SnapshotReader {
	return &SnapshotReader{registry: registry}
}

// Report returns every allocated slot in ascending ID order. Freed and
// never-used slots are skipped.
func (r *SnapshotReader) Report() []Entry {
	maxID := r.registry.MaxCounterID()
	entries := make([]Entry, 0, maxID+1)
	for id := int32(0); id <= maxID; id++ {
		if r.registry.CounterState(id) != RecordAllocated {
			continue
		}
		entries = append(entries, Entry{
			CounterID: id,
			TypeID:    r.registry.CounterTypeID(id),
			Label:     r.registry.CounterLabel(id),
			Value:     r.registry.CounterValue(id),
		})
	}
	return entries
}

// CountByType returns how many entries have the given type ID.
func CountByType(entries []Entry, typeID int32) int {
	n := 0
	for _, e := range entries {
		if e.TypeID == typeID {
			n++
		}
	}
	return n
}
