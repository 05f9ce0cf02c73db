package retention

import (
	"context"
	"sync"

	"github.com/starquake/horizon/internal/archive"
)

type purgeCall struct {
	recordingID      int64
	newStartPosition int64
}

// scriptedArchive is an archive.Client whose answers are set by the test
// and which records every purge and stop call.
type scriptedArchive struct {
	mu sync.Mutex

	recordings []archive.RecordingDescriptor
	positions  map[int64]int64

	listErr     error
	describeErr error
	positionErr error
	purgeErrs   []error
	stopErr     error
	deleted     int64

	purges   []purgeCall
	stops    []int64
	deadline []bool
}

var _ archive.Client = (*scriptedArchive)(nil)

func newScriptedArchive(recordings ...archive.RecordingDescriptor) *scriptedArchive {
	return &scriptedArchive{recordings: recordings, positions: make(map[int64]int64)}
}

func (a *scriptedArchive) noteDeadline(ctx context.Context) {
	_, ok := ctx.Deadline()
	a.deadline = append(a.deadline, ok)
}

func (a *scriptedArchive) ListRecordings(ctx context.Context, from int64, count int32) ([]archive.RecordingDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteDeadline(ctx)
	if a.listErr != nil {
		return nil, a.listErr
	}
	var out []archive.RecordingDescriptor
	for _, r := range a.recordings {
		if r.RecordingID >= from && int32(len(out)) < count {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *scriptedArchive) ListRecordingsForURI(ctx context.Context, from int64, count int32, channel string, streamID int32) ([]archive.RecordingDescriptor, error) {
	all, err := a.ListRecordings(ctx, from, count)
	if err != nil {
		return nil, err
	}
	var out []archive.RecordingDescriptor
	for _, r := range all {
		if r.StrippedChannel == channel && r.StreamID == streamID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a *scriptedArchive) ListRecording(ctx context.Context, recordingID int64) (archive.RecordingDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteDeadline(ctx)
	if a.describeErr != nil {
		return archive.RecordingDescriptor{}, a.describeErr
	}
	for _, r := range a.recordings {
		if r.RecordingID == recordingID {
			return r, nil
		}
	}
	return archive.RecordingDescriptor{}, &archive.ServiceError{Op: archive.OpListRecording, Code: archive.CodeUnknownRecording, Message: "unknown recording"}
}

func (a *scriptedArchive) RecordingPosition(ctx context.Context, recordingID int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteDeadline(ctx)
	if a.positionErr != nil {
		return 0, a.positionErr
	}
	if pos, ok := a.positions[recordingID]; ok {
		return pos, nil
	}
	return archive.NullPosition, nil
}

func (a *scriptedArchive) PurgeSegments(ctx context.Context, recordingID, newStartPosition int64) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteDeadline(ctx)
	a.purges = append(a.purges, purgeCall{recordingID, newStartPosition})
	if len(a.purgeErrs) > 0 {
		err := a.purgeErrs[0]
		a.purgeErrs = a.purgeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return a.deleted, nil
}

func (a *scriptedArchive) StopReplay(ctx context.Context, replaySessionID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.noteDeadline(ctx)
	a.stops = append(a.stops, replaySessionID)
	return a.stopErr
}

func (a *scriptedArchive) StartReplay(context.Context, int64, int64, int64, string, int32) (int64, error) {
	return 0, nil
}

func activeRecording(id, start, segLen int64) archive.RecordingDescriptor {
	return archive.RecordingDescriptor{
		RecordingID:       id,
		StartPosition:     start,
		StopPosition:      archive.NullPosition,
		StopTimestamp:     archive.NullPosition,
		SegmentFileLength: segLen,
		StreamID:          10,
		StrippedChannel:   "aeron:ipc",
	}
}

func stoppedRecording(id, start, stop, segLen int64) archive.RecordingDescriptor {
	d := activeRecording(id, start, segLen)
	d.StopPosition = stop
	return d
}

func replayConflict(recordingID, position, replayID int64) error {
	return &archive.ServiceError{
		Op:      archive.OpPurgeSegments,
		Code:    archive.CodeGeneric,
		Message: archive.ReplayConflictMessage(recordingID, position, replayID, 0),
	}
}
