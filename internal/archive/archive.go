// Package archive defines the contract Horizon consumes from the archival
// service: recording listing, position queries, segment purge and replay
// control.
//
// The service's native control protocol is not modelled here. Client is the
// synchronous RPC surface; package rpc carries it over gRPC and Memory
// implements it in-process for tests and the simulator.
package archive

import "context"

// NullPosition marks an absent position: a recording that has not stopped,
// or a recording that is not currently active.
const NullPosition int64 = -1

// MaxRecordCount lists every recording from a given ID.
const MaxRecordCount int32 = 1<<31 - 1

// RecordingDescriptor describes one recording known to the archive.
type RecordingDescriptor struct {
	RecordingID       int64  `json:"recordingId"`
	StartTimestamp    int64  `json:"startTimestamp"`
	StopTimestamp     int64  `json:"stopTimestamp"`
	StartPosition     int64  `json:"startPosition"`
	StopPosition      int64  `json:"stopPosition"`
	SegmentFileLength int64  `json:"segmentFileLength"`
	TermBufferLength  int32  `json:"termBufferLength"`
	MtuLength         int32  `json:"mtuLength"`
	SessionID         int32  `json:"sessionId"`
	StreamID          int32  `json:"streamId"`
	StrippedChannel   string `json:"strippedChannel"`
	OriginalChannel   string `json:"originalChannel"`
	SourceIdentity    string `json:"sourceIdentity"`
}

// IsActive reports whether the recording is still being appended to.
func (d RecordingDescriptor) IsActive() bool {
	return d.StopPosition == NullPosition
}

// Client is the archive control surface. All calls block until the archive
// answers or ctx is done.
type Client interface {
	// ListRecordings returns up to recordCount descriptors with
	// RecordingID >= fromRecordingID in ascending ID order.
	ListRecordings(ctx context.Context, fromRecordingID int64, recordCount int32) ([]RecordingDescriptor, error)

	// ListRecordingsForURI is ListRecordings filtered by stripped channel
	// and stream ID.
	ListRecordingsForURI(ctx context.Context, fromRecordingID int64, recordCount int32, channel string, streamID int32) ([]RecordingDescriptor, error)

	// ListRecording returns a single descriptor. Unknown IDs fail with
	// ErrRecordingNotFound.
	ListRecording(ctx context.Context, recordingID int64) (RecordingDescriptor, error)

	// RecordingPosition returns the live append position of an active
	// recording, or NullPosition if the recording is not active.
	RecordingPosition(ctx context.Context, recordingID int64) (int64, error)

	// PurgeSegments deletes whole segments below newStartPosition and
	// returns how many were deleted.
	PurgeSegments(ctx context.Context, recordingID, newStartPosition int64) (int64, error)

	// StopReplay terminates a replay session.
	StopReplay(ctx context.Context, replaySessionID int64) error

	// StartReplay starts replaying length bytes from position to the given
	// channel and stream and returns the replay session ID.
	StartReplay(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error)
}
