package audit

import (
	"bytes"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/starquake/horizon/internal/events"
)

// Row is the Parquet schema of an archived tick event.
type Row struct {
	Type            string `parquet:"type,dict"`
	TickID          string `parquet:"tick_id"`
	ArchiveID       string `parquet:"archive_id,dict"`
	RecordingID     int64  `parquet:"recording_id"`
	PurgePosition   int64  `parquet:"purge_position"`
	ReplaySessionID *int64 `parquet:"replay_session_id,optional"`
	DeletedSegments int64  `parquet:"deleted_segments"`
	Error           string `parquet:"error,optional"`
	TimestampMs     int64  `parquet:"timestamp,timestamp(millisecond)"`
}

func rowFromEvent(e events.Event) Row {
	return Row{
		Type:            string(e.Type),
		TickID:          e.TickID,
		ArchiveID:       e.ArchiveID,
		RecordingID:     e.RecordingID,
		PurgePosition:   e.PurgePosition,
		ReplaySessionID: e.ReplaySessionID,
		DeletedSegments: e.DeletedSegments,
		Error:           e.Error,
		TimestampMs:     e.TimestampMs,
	}
}

func (r Row) event() events.Event {
	return events.Event{
		Type:            events.Type(r.Type),
		TickID:          r.TickID,
		ArchiveID:       r.ArchiveID,
		RecordingID:     r.RecordingID,
		PurgePosition:   r.PurgePosition,
		ReplaySessionID: r.ReplaySessionID,
		DeletedSegments: r.DeletedSegments,
		Error:           r.Error,
		TimestampMs:     r.TimestampMs,
	}
}

// encodeParquet writes evs as one zstd-compressed Parquet file.
func encodeParquet(evs []events.Event) ([]byte, error) {
	rows := make([]Row, len(evs))
	for i, e := range evs {
		rows[i] = rowFromEvent(e)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[Row](&buf, parquet.Compression(&parquet.Zstd))
	n, err := w.Write(rows)
	if err != nil {
		return nil, fmt.Errorf("parquet: write rows: %w", err)
	}
	if n != len(rows) {
		return nil, fmt.Errorf("parquet: wrote %d of %d rows", n, len(rows))
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("parquet: close: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeParquet(data []byte) ([]events.Event, error) {
	r := parquet.NewGenericReader[Row](bytes.NewReader(data))
	defer r.Close()

	rows := make([]Row, r.NumRows())
	n, err := r.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("parquet: read rows: %w", err)
	}

	out := make([]events.Event, n)
	for i := range rows[:n] {
		out[i] = rows[i].event()
	}
	return out, nil
}
