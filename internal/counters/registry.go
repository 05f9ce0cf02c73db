// Package counters reads the host process's shared counter registry.
//
// The registry is a slot-indexed table. Each slot has an allocation state,
// a type ID, a label and a 64-bit value. Slots are addressed by sequential
// IDs starting at zero. The archive allocates a slot per active recording
// and per active replay so operators can watch positions without an RPC.
package counters

import (
	"errors"
	"fmt"
)

// Slot allocation states.
const (
	RecordUnused    int32 = 0
	RecordAllocated int32 = 1
	RecordReclaimed int32 = -1
)

// Well-known counter type IDs published by the archive.
const (
	TypeRecordingPosition int32 = 100
	TypeReplayPosition    int32 = 101
)

var (
	// ErrRegistryFull is returned when no slot is free.
	ErrRegistryFull = errors.New("counters: registry full")

	// ErrReadOnly is returned when writing through a read-only handle.
	ErrReadOnly = errors.New("counters: registry opened read-only")

	// ErrLabelTooLong is returned when a label exceeds MaxLabelLength.
	ErrLabelTooLong = errors.New("counters: label too long")
)

// Registry is read access to a counter table. Out-of-range IDs read as
// unused slots with zero values.
type Registry interface {
	// MaxCounterID is the highest slot ID that has ever been allocated,
	// or -1 if none has.
	MaxCounterID() int32
	CounterState(id int32) int32
	CounterTypeID(id int32) int32
	CounterLabel(id int32) string
	CounterValue(id int32) int64
}

// Writer allocates and updates counters.
type Writer interface {
	Allocate(typeID int32, label string) (int32, error)
	SetValue(id int32, value int64)
	Free(id int32)
}

// RecordingPositionLabel is the label the archive uses for a recording's
// position counter.
func RecordingPositionLabel(recordingID int64, streamID int32, channel string) string {
	return fmt.Sprintf("rec-pos: %d %d %s", recordingID, streamID, channel)
}

// ReplayPositionLabel is the label the archive uses for a replay session's
// position counter.
func ReplayPositionLabel(replaySessionID, recordingID int64) string {
	return fmt.Sprintf("replay-pos: %d %d", replaySessionID, recordingID)
}
