package counters

import "sync"

// MemoryRegistry is an in-process Registry and Writer.
type MemoryRegistry struct {
	mu       sync.RWMutex
	capacity int
	slots    []memorySlot
}

type memorySlot struct {
	state  int32
	typeID int32
	label  string
	value  int64
}

// NewMemoryRegistry creates a registry with room for capacity slots.
func NewMemoryRegistry(capacity int) *MemoryRegistry {
	return &MemoryRegistry{capacity: capacity}
}

// Allocate claims the lowest free slot, reusing reclaimed slots first.
func (m *MemoryRegistry) Allocate(typeID int32, label string) (int32, error) {
	if len(label) > MaxLabelLength {
		return -1, ErrLabelTooLong
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := memorySlot{state: RecordAllocated, typeID: typeID, label: label}
	for i := range m.slots {
		if m.slots[i].state != RecordAllocated {
			m.slots[i] = slot
			return int32(i), nil
		}
	}
	if len(m.slots) >= m.capacity {
		return -1, ErrRegistryFull
	}
	m.slots = append(m.slots, slot)
	return int32(len(m.slots) - 1), nil
}

func (m *MemoryRegistry) SetValue(id int32, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid(id) {
		m.slots[id].value = value
	}
}

func (m *MemoryRegistry) Free(id int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid(id) {
		m.slots[id].state = RecordReclaimed
	}
}

func (m *MemoryRegistry) MaxCounterID() int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int32(len(m.slots) - 1)
}

func (m *MemoryRegistry) CounterState(id int32) int32 {
	return m.slot(id).state
}

func (m *MemoryRegistry) CounterTypeID(id int32) int32 {
	return m.slot(id).typeID
}

func (m *MemoryRegistry) CounterLabel(id int32) string {
	return m.slot(id).label
}

func (m *MemoryRegistry) CounterValue(id int32) int64 {
	return m.slot(id).value
}

func (m *MemoryRegistry) slot(id int32) memorySlot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.valid(id) {
		return memorySlot{}
	}
	return m.slots[id]
}

func (m *MemoryRegistry) valid(id int32) bool {
	return id >= 0 && int(id) < len(m.slots)
}
