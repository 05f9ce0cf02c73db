package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/starquake/horizon/internal/archive"
)

// Directory answers which recording retention should act on.
type Directory struct {
	client     archive.Client
	rpcTimeout time.Duration
}

// NewDirectory creates a Directory. Each archive call runs under
// rpcTimeout; zero leaves the caller's deadline alone.
func NewDirectory(client archive.Client, rpcTimeout time.Duration) *Directory {
	return &Directory{client: client, rpcTimeout: rpcTimeout}
}

// FindActiveRecording returns the active recording with the highest ID.
// found is false when no recording is active.
func (d *Directory) FindActiveRecording(ctx context.Context) (desc archive.RecordingDescriptor, found bool, err error) {
	callCtx, cancel := withRPCTimeout(ctx, d.rpcTimeout)
	defer cancel()

	recordings, err := d.client.ListRecordings(callCtx, 0, archive.MaxRecordCount)
	if err != nil {
		return archive.RecordingDescriptor{}, false, fmt.Errorf("list recordings: %w", err)
	}
	for _, r := range recordings {
		if !r.IsActive() {
			continue
		}
		if !found || r.RecordingID > desc.RecordingID {
			desc, found = r, true
		}
	}
	return desc, found, nil
}

// FindLatestRecording returns the recording with the highest ID on the
// given channel and stream, active or not.
func (d *Directory) FindLatestRecording(ctx context.Context, channel string, streamID int32) (desc archive.RecordingDescriptor, found bool, err error) {
	callCtx, cancel := withRPCTimeout(ctx, d.rpcTimeout)
	defer cancel()

	recordings, err := d.client.ListRecordingsForURI(callCtx, 0, archive.MaxRecordCount, channel, streamID)
	if err != nil {
		return archive.RecordingDescriptor{}, false, fmt.Errorf("list recordings for %s stream %d: %w", channel, streamID, err)
	}
	for _, r := range recordings {
		if !found || r.RecordingID > desc.RecordingID {
			desc, found = r, true
		}
	}
	return desc, found, nil
}

// Resolve fetches a fresh descriptor and the live position of recordingID.
// The position is archive.NullPosition once the recording has stopped.
func (d *Directory) Resolve(ctx context.Context, recordingID int64) (archive.RecordingDescriptor, int64, error) {
	callCtx, cancel := withRPCTimeout(ctx, d.rpcTimeout)
	desc, err := d.client.ListRecording(callCtx, recordingID)
	cancel()
	if err != nil {
		return archive.RecordingDescriptor{}, archive.NullPosition, fmt.Errorf("describe recording %d: %w", recordingID, err)
	}

	callCtx, cancel = withRPCTimeout(ctx, d.rpcTimeout)
	live, err := d.client.RecordingPosition(callCtx, recordingID)
	cancel()
	if err != nil {
		return desc, archive.NullPosition, fmt.Errorf("recording position %d: %w", recordingID, err)
	}
	return desc, live, nil
}

func withRPCTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
