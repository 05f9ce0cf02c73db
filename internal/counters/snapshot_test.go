package counters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_SkipsFreedSlots(t *testing.T) {
	reg := NewMemoryRegistry(8)

	a, err := reg.Allocate(TypeRecordingPosition, RecordingPositionLabel(0, 10, "aeron:ipc"))
	require.NoError(t, err)
	b, err := reg.Allocate(TypeReplayPosition, ReplayPositionLabel(99, 0))
	require.NoError(t, err)
	c, err := reg.Allocate(7, "bytes-sent")
	require.NoError(t, err)

	reg.SetValue(a, 3072)
	reg.SetValue(c, 12)
	reg.Free(b)

	entries := NewSnapshotReader(reg).Report()
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{CounterID: a, TypeID: TypeRecordingPosition, Label: "rec-pos: 0 10 aeron:ipc", Value: 3072}, entries[0])
	assert.Equal(t, Entry{CounterID: c, TypeID: 7, Label: "bytes-sent", Value: 12}, entries[1])
}

func TestReport_EmptyRegistry(t *testing.T) {
	entries := NewSnapshotReader(NewMemoryRegistry(4)).Report()
	assert.Empty(t, entries)
}

func TestReport_IsRegeneratedEachCall(t *testing.T) {
	reg := NewMemoryRegistry(4)
	id, err := reg.Allocate(TypeRecordingPosition, "rec-pos")
	require.NoError(t, err)
	reader := NewSnapshotReader(reg)

	reg.SetValue(id, 100)
	first := reader.Report()
	reg.SetValue(id, 200)
	second := reader.Report()

	assert.Equal(t, int64(100), first[0].Value)
	assert.Equal(t, int64(200), second[0].Value)
}

func TestMemoryRegistry_ReusesReclaimedSlot(t *testing.T) {
	reg := NewMemoryRegistry(2)

	a, err := reg.Allocate(1, "a")
	require.NoError(t, err)
	_, err = reg.Allocate(1, "b")
	require.NoError(t, err)

	_, err = reg.Allocate(1, "c")
	assert.ErrorIs(t, err, ErrRegistryFull)

	reg.Free(a)
	reused, err := reg.Allocate(2, "c")
	require.NoError(t, err)
	assert.Equal(t, a, reused)
	assert.Equal(t, int32(1), reg.MaxCounterID())
}

func TestMemoryRegistry_OutOfRangeReadsAsUnused(t *testing.T) {
	reg := NewMemoryRegistry(2)
	assert.Equal(t, RecordUnused, reg.CounterState(5))
	assert.Equal(t, RecordUnused, reg.CounterState(-1))
	assert.Equal(t, int32(-1), reg.MaxCounterID())
}

func TestCountByType(t *testing.T) {
	entries := []Entry{
		{TypeID: TypeReplayPosition},
		{TypeID: TypeRecordingPosition},
		{TypeID: TypeReplayPosition},
	}
	assert.Equal(t, 2, CountByType(entries, TypeReplayPosition))
	assert.Equal(t, 0, CountByType(entries, 3))
}
