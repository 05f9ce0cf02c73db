package archive

import (
	"context"
	"time"
)

// MetricsRecorder records per-operation latency and outcome.
type MetricsRecorder interface {
	RecordOperation(operation string, durationSeconds float64, success bool)
}

// InstrumentedClient wraps a Client and records metrics for each call,
// labelled with the Op* names.
type InstrumentedClient struct {
	client  Client
	metrics MetricsRecorder
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient wraps client. A nil metrics recorder passes every
// call straight through.
func NewInstrumentedClient(client Client, metrics MetricsRecorder) *InstrumentedClient {
	return &InstrumentedClient{client: client, metrics: metrics}
}

func (c *InstrumentedClient) ListRecordings(ctx context.Context, fromRecordingID int64, recordCount int32) ([]RecordingDescriptor, error) {
	start := time.Now()
	out, err := c.client.ListRecordings(ctx, fromRecordingID, recordCount)
	c.record(OpListRecordings, start, err)
	return out, err
}

func (c *InstrumentedClient) ListRecordingsForURI(ctx context.Context, fromRecordingID int64, recordCount int32, channel string, streamID int32) ([]RecordingDescriptor, error) {
	start := time.Now()
	out, err := c.client.ListRecordingsForURI(ctx, fromRecordingID, recordCount, channel, streamID)
	c.record(OpListRecordingsForURI, start, err)
	return out, err
}

func (c *InstrumentedClient) ListRecording(ctx context.Context, recordingID int64) (RecordingDescriptor, error) {
	start := time.Now()
	out, err := c.client.ListRecording(ctx, recordingID)
	c.record(OpListRecording, start, err)
	return out, err
}

func (c *InstrumentedClient) RecordingPosition(ctx context.Context, recordingID int64) (int64, error) {
	start := time.Now()
	pos, err := c.client.RecordingPosition(ctx, recordingID)
	c.record(OpRecordingPosition, start, err)
	return pos, err
}

func (c *InstrumentedClient) PurgeSegments(ctx context.Context, recordingID, newStartPosition int64) (int64, error) {
	start := time.Now()
	n, err := c.client.PurgeSegments(ctx, recordingID, newStartPosition)
	c.record(OpPurgeSegments, start, err)
	return n, err
}

func (c *InstrumentedClient) StopReplay(ctx context.Context, replaySessionID int64) error {
	start := time.Now()
	err := c.client.StopReplay(ctx, replaySessionID)
	c.record(OpStopReplay, start, err)
	return err
}

func (c *InstrumentedClient) StartReplay(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	start := time.Now()
	id, err := c.client.StartReplay(ctx, recordingID, position, length, replayChannel, replayStreamID)
	c.record(OpStartReplay, start, err)
	return id, err
}

func (c *InstrumentedClient) record(op string, start time.Time, err error) {
	if c.metrics != nil {
		c.metrics.RecordOperation(op, time.Since(start).Seconds(), err == nil)
	}
}
