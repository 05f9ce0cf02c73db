// Package events publishes retention tick outcomes for downstream
// consumers such as audit pipelines and dashboards.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/starquake/horizon/internal/logging"
)

// Type names a tick outcome.
type Type string

const (
	TypeNoActiveRecording   Type = "no_active_recording"
	TypeNothingToPurge      Type = "nothing_to_purge"
	TypePurged              Type = "purged"
	TypePurgedAfterConflict Type = "purged_after_conflict"
	TypeFailed              Type = "failed"
	TypeNotLeader           Type = "not_leader"
)

// Event describes one retention tick.
type Event struct {
	Type            Type   `json:"type"`
	TickID          string `json:"tickId"`
	ArchiveID       string `json:"archiveId,omitempty"`
	RecordingID     int64  `json:"recordingId"`
	PurgePosition   int64  `json:"purgePosition"`
	ReplaySessionID *int64 `json:"replaySessionId,omitempty"`
	DeletedSegments int64  `json:"deletedSegments,omitempty"`
	Error           string `json:"error,omitempty"`
	TimestampMs     int64  `json:"timestampMs"`
}

// ReplaySession returns a ReplaySessionID value for id. Session 0 is a
// valid archive session, so absence is nil rather than zero.
func ReplaySession(id int64) *int64 {
	return &id
}

// Key returns the partitioning key: events of one recording stay ordered.
func (e Event) Key() []byte {
	return []byte(strconv.FormatInt(e.RecordingID, 10))
}

// Marshal encodes e as JSON.
func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s: %w", e.Type, err)
	}
	return b, nil
}

// Unmarshal decodes an event produced by Marshal.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("events: unmarshal: %w", err)
	}
	return e, nil
}

// Sink receives tick events. Publish may block until the event is durable.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogSink writes events to a logger.
type LogSink struct {
	logger *logging.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink that logs each event at info level.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Global()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, e Event) error {
	fields := map[string]any{
		"type":          string(e.Type),
		"tickId":        e.TickID,
		"recordingId":   e.RecordingID,
		"purgePosition": e.PurgePosition,
	}
	if e.ArchiveID != "" {
		fields["archiveId"] = e.ArchiveID
	}
	if e.ReplaySessionID != nil {
		fields["replaySessionId"] = *e.ReplaySessionID
	}
	if e.DeletedSegments != 0 {
		fields["deletedSegments"] = e.DeletedSegments
	}
	if e.Error != "" {
		fields["error"] = e.Error
	}
	s.logger.Infof("retention event", fields)
	return nil
}

func (s *LogSink) Close() error { return nil }
