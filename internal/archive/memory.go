package archive

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/starquake/horizon/internal/counters"
)

// Operation names used by Memory's call log and fault injection.
const (
	OpListRecordings       = "listRecordings"
	OpListRecordingsForURI = "listRecordingsForUri"
	OpListRecording        = "listRecording"
	OpRecordingPosition    = "recordingPosition"
	OpPurgeSegments        = "purgeSegments"
	OpStopReplay           = "stopReplay"
	OpStartReplay          = "startReplay"
)

// Memory is an in-process archive. It keeps descriptors and live positions
// for recordings, tracks replay sessions, and rejects purges that would
// delete data an active replay has not read yet.
type Memory struct {
	mu sync.Mutex

	recordings      map[int64]*memRecording
	replays         map[int64]*memReplay
	nextRecordingID int64
	nextReplayID    int64

	counters counters.Writer
	now      func() time.Time

	calls    []string
	failures map[string][]error
}

type memRecording struct {
	desc      RecordingDescriptor
	position  int64
	counterID int32
}

type memReplay struct {
	recordingID int64
	position    int64
	end         int64
	counterID   int32
}

// MemoryOption configures a Memory archive.
type MemoryOption func(*Memory)

// WithCounters publishes recording and replay positions into w.
func WithCounters(w counters.Writer) MemoryOption {
	return func(m *Memory) { m.counters = w }
}

// WithClock overrides the clock used for recording timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory archive.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		recordings:   make(map[int64]*memRecording),
		replays:      make(map[int64]*memReplay),
		nextReplayID: 1,
		now:          time.Now,
		failures:     make(map[string][]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Client = (*Memory)(nil)

// StartRecording registers a new active recording and returns its ID.
func (m *Memory) StartRecording(channel string, streamID int32, startPosition, segmentFileLength int64) (int64, error) {
	if segmentFileLength <= 0 {
		return 0, fmt.Errorf("archive: invalid segment file length %d", segmentFileLength)
	}
	if startPosition < 0 {
		return 0, fmt.Errorf("archive: invalid start position %d", startPosition)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextRecordingID
	m.nextRecordingID++

	rec := &memRecording{
		desc: RecordingDescriptor{
			RecordingID:       id,
			StartTimestamp:    m.now().UnixMilli(),
			StopTimestamp:     NullPosition,
			StartPosition:     startPosition,
			StopPosition:      NullPosition,
			SegmentFileLength: segmentFileLength,
			StreamID:          streamID,
			StrippedChannel:   channel,
			OriginalChannel:   channel,
		},
		position:  startPosition,
		counterID: -1,
	}
	if m.counters != nil {
		if cid, err := m.counters.Allocate(counters.TypeRecordingPosition, counters.RecordingPositionLabel(id, streamID, channel)); err == nil {
			rec.counterID = cid
			m.counters.SetValue(cid, startPosition)
		}
	}
	m.recordings[id] = rec
	return id, nil
}

// Append advances an active recording by length bytes and returns the new
// position.
func (m *Memory) Append(recordingID, length int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordings[recordingID]
	if !ok {
		return 0, m.unknownRecording("append", recordingID)
	}
	if !rec.desc.IsActive() {
		return 0, &ServiceError{Op: "append", Code: CodeGeneric, Message: fmt.Sprintf("recording %d is stopped", recordingID)}
	}
	rec.position += length
	if rec.counterID >= 0 {
		m.counters.SetValue(rec.counterID, rec.position)
	}
	return rec.position, nil
}

// StopRecording stops an active recording at its current position.
func (m *Memory) StopRecording(recordingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordings[recordingID]
	if !ok {
		return m.unknownRecording("stopRecording", recordingID)
	}
	if !rec.desc.IsActive() {
		return nil
	}
	rec.desc.StopPosition = rec.position
	rec.desc.StopTimestamp = m.now().UnixMilli()
	if rec.counterID >= 0 {
		m.counters.Free(rec.counterID)
		rec.counterID = -1
	}
	return nil
}

// AdvanceReplay moves a replay session's read position forward. A session
// that reaches the end of its requested range completes and is removed.
func (m *Memory) AdvanceReplay(replaySessionID, position int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rp, ok := m.replays[replaySessionID]
	if !ok {
		return &ServiceError{Op: "advanceReplay", Code: CodeUnknownReplay, Message: fmt.Sprintf("unknown replay session %d", replaySessionID)}
	}
	rp.position = position
	if position >= rp.end {
		m.removeReplay(replaySessionID, rp)
		return nil
	}
	if rp.counterID >= 0 {
		m.counters.SetValue(rp.counterID, position)
	}
	return nil
}

// ReplaySessions returns the IDs of active replay sessions in ascending order.
func (m *Memory) ReplaySessions() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.replays))
	for id := range m.replays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FailNext makes the next call to op fail with err. Queued failures are
// consumed in order.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Calls returns how many times op has been invoked.
func (m *Memory) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

// CallLog returns every operation invoked, in order.
func (m *Memory) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Memory) ListRecordings(ctx context.Context, fromRecordingID int64, recordCount int32) ([]RecordingDescriptor, error) {
	return m.list(ctx, OpListRecordings, fromRecordingID, recordCount, func(RecordingDescriptor) bool { return true })
}

func (m *Memory) ListRecordingsForURI(ctx context.Context, fromRecordingID int64, recordCount int32, channel string, streamID int32) ([]RecordingDescriptor, error) {
	return m.list(ctx, OpListRecordingsForURI, fromRecordingID, recordCount, func(d RecordingDescriptor) bool {
		return d.StreamID == streamID && d.StrippedChannel == channel
	})
}

func (m *Memory) list(ctx context.Context, op string, from int64, count int32, match func(RecordingDescriptor) bool) ([]RecordingDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, op); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(m.recordings))
	for id := range m.recordings {
		if id >= from {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []RecordingDescriptor
	for _, id := range ids {
		if int64(len(out)) >= int64(count) {
			break
		}
		if d := m.recordings[id].desc; match(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Memory) ListRecording(ctx context.Context, recordingID int64) (RecordingDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpListRecording); err != nil {
		return RecordingDescriptor{}, err
	}
	rec, ok := m.recordings[recordingID]
	if !ok {
		return RecordingDescriptor{}, m.unknownRecording(OpListRecording, recordingID)
	}
	return rec.desc, nil
}

func (m *Memory) RecordingPosition(ctx context.Context, recordingID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpRecordingPosition); err != nil {
		return 0, err
	}
	rec, ok := m.recordings[recordingID]
	if !ok || !rec.desc.IsActive() {
		return NullPosition, nil
	}
	return rec.position, nil
}

func (m *Memory) PurgeSegments(ctx context.Context, recordingID, newStartPosition int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpPurgeSegments); err != nil {
		return 0, err
	}
	rec, ok := m.recordings[recordingID]
	if !ok {
		return 0, m.unknownRecording(OpPurgeSegments, recordingID)
	}

	d := rec.desc
	limit := rec.position
	if !d.IsActive() {
		limit = d.StopPosition
	}
	if newStartPosition < d.StartPosition || (newStartPosition-d.StartPosition)%d.SegmentFileLength != 0 {
		return 0, &ServiceError{Op: OpPurgeSegments, Code: CodeInvalidPosition,
			Message: fmt.Sprintf("purge position %d is not a segment boundary of recording %d", newStartPosition, recordingID)}
	}
	if newStartPosition > limit {
		return 0, &ServiceError{Op: OpPurgeSegments, Code: CodeInvalidPosition,
			Message: fmt.Sprintf("purge position %d is beyond recorded position %d", newStartPosition, limit)}
	}

	if id, rp, blocked := m.blockingReplay(recordingID, newStartPosition); blocked {
		return 0, &ServiceError{Op: OpPurgeSegments, Code: CodeGeneric,
			Message: ReplayConflictMessage(recordingID, newStartPosition, id, rp.position)}
	}

	deleted := (newStartPosition - d.StartPosition) / d.SegmentFileLength
	rec.desc.StartPosition = newStartPosition
	return deleted, nil
}

// blockingReplay returns the lowest-numbered replay on the recording whose
// read position is still below newStartPosition.
func (m *Memory) blockingReplay(recordingID, newStartPosition int64) (int64, *memReplay, bool) {
	var (
		blockerID int64
		blocker   *memReplay
	)
	for id, rp := range m.replays {
		if rp.recordingID != recordingID || rp.position >= newStartPosition {
			continue
		}
		if blocker == nil || id < blockerID {
			blockerID, blocker = id, rp
		}
	}
	return blockerID, blocker, blocker != nil
}

func (m *Memory) StopReplay(ctx context.Context, replaySessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpStopReplay); err != nil {
		return err
	}
	rp, ok := m.replays[replaySessionID]
	if !ok {
		return &ServiceError{Op: OpStopReplay, Code: CodeUnknownReplay, Message: fmt.Sprintf("unknown replay session %d", replaySessionID)}
	}
	m.removeReplay(replaySessionID, rp)
	return nil
}

func (m *Memory) removeReplay(id int64, rp *memReplay) {
	if rp.counterID >= 0 {
		m.counters.Free(rp.counterID)
	}
	delete(m.replays, id)
}

func (m *Memory) StartReplay(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpStartReplay); err != nil {
		return 0, err
	}
	rec, ok := m.recordings[recordingID]
	if !ok {
		return 0, m.unknownRecording(OpStartReplay, recordingID)
	}
	limit := rec.position
	if !rec.desc.IsActive() {
		limit = rec.desc.StopPosition
	}
	if position < rec.desc.StartPosition || position > limit {
		return 0, &ServiceError{Op: OpStartReplay, Code: CodeInvalidPosition,
			Message: fmt.Sprintf("replay position %d outside [%d, %d] of recording %d", position, rec.desc.StartPosition, limit, recordingID)}
	}
	if replayChannel == "" {
		return 0, &ServiceError{Op: OpStartReplay, Code: CodeGeneric, Message: "replay channel is required"}
	}

	id := m.nextReplayID
	m.nextReplayID++

	end := int64(math.MaxInt64)
	if length >= 0 && length < math.MaxInt64-position {
		end = position + length
	}
	rp := &memReplay{recordingID: recordingID, position: position, end: end, counterID: -1}
	if m.counters != nil {
		if cid, err := m.counters.Allocate(counters.TypeReplayPosition, counters.ReplayPositionLabel(id, recordingID)); err == nil {
			rp.counterID = cid
			m.counters.SetValue(cid, position)
		}
	}
	m.replays[id] = rp
	return id, nil
}

// begin records the call, honours cancellation and pops any injected
// failure. m.mu must be held.
func (m *Memory) begin(ctx context.Context, op string) error {
	m.calls = append(m.calls, op)
	if err := ctx.Err(); err != nil {
		return err
	}
	if q := m.failures[op]; len(q) > 0 {
		m.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (m *Memory) unknownRecording(op string, recordingID int64) error {
	return &ServiceError{Op: op, Code: CodeUnknownRecording, Message: fmt.Sprintf("unknown recording %d", recordingID)}
}
