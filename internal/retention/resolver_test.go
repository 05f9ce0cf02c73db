package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starquake/horizon/internal/archive"
)

type recordedMetrics struct {
	ticks    []string
	attempts []string
	stopped  int
	purged   []int64
}

func (m *recordedMetrics) RecordTick(outcome string, _ float64) { m.ticks = append(m.ticks, outcome) }
func (m *recordedMetrics) RecordPurgeAttempt(result string)     { m.attempts = append(m.attempts, result) }
func (m *recordedMetrics) RecordReplayStopped()                  { m.stopped++ }
func (m *recordedMetrics) RecordPurged(_ string, position int64, _ int64) {
	m.purged = append(m.purged, position)
}

func newTestResolver(a archive.Client) *Resolver {
	return NewResolver(a, time.Second, 0)
}

func TestResolver_Success(t *testing.T) {
	a := newScriptedArchive()
	a.deleted = 3
	m := &recordedMetrics{}

	out, err := newTestResolver(a).WithMetrics(m).Purge(context.Background(), 7, 4000)
	require.NoError(t, err)
	assert.Equal(t, PurgeOutcome{Attempts: 1, DeletedSegments: 3}, out)
	assert.Equal(t, []purgeCall{{7, 4000}}, a.purges)
	assert.Empty(t, a.stops)
	assert.Equal(t, []string{purgeResultOK}, m.attempts)
}

func TestResolver_ConflictStopsReplayAndRetriesOnce(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{&archive.ServiceError{
		Op:      archive.OpPurgeSegments,
		Code:    archive.CodeGeneric,
		Message: "purge rejected: replaySessionId=42 is still reading",
	}}
	a.deleted = 2
	m := &recordedMetrics{}

	out, err := newTestResolver(a).WithMetrics(m).Purge(context.Background(), 3, 2048)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, a.stops)
	assert.Equal(t, []purgeCall{{3, 2048}, {3, 2048}}, a.purges)
	assert.Equal(t, PurgeOutcome{Attempts: 2, DeletedSegments: 2, StoppedReplay: true, ReplaySessionID: 42}, out)
	assert.Equal(t, []string{purgeResultConflict, purgeResultOK}, m.attempts)
	assert.Equal(t, 1, m.stopped)
}

func TestResolver_ConflictRetryScenario(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}

	out, err := newTestResolver(a).Purge(context.Background(), 7, 4000)
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, a.stops)
	assert.Len(t, a.purges, 2)
	assert.True(t, out.StoppedReplay)
}

func TestResolver_NoReplayFieldSurfacesOriginalFailure(t *testing.T) {
	original := &archive.ServiceError{Op: archive.OpPurgeSegments, Code: archive.CodeGeneric, Message: "disk quota exceeded"}
	a := newScriptedArchive()
	a.purgeErrs = []error{original}
	m := &recordedMetrics{}

	out, err := newTestResolver(a).WithMetrics(m).Purge(context.Background(), 7, 4000)
	require.Error(t, err)
	assert.Empty(t, a.stops)
	assert.Len(t, a.purges, 1)
	assert.Equal(t, 1, out.Attempts)

	var failed *PurgeFailedError
	require.ErrorAs(t, err, &failed)
	assert.False(t, failed.Conflict)
	assert.Equal(t, 1, failed.Attempts)
	assert.ErrorIs(t, err, original)
	assert.Equal(t, []string{purgeResultError}, m.attempts)
}

func TestResolver_TransportErrorIsNeverAConflict(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{errors.New("connection reset (replaySessionId=5)")}

	_, err := newTestResolver(a).Purge(context.Background(), 1, 1024)
	require.Error(t, err)
	assert.Empty(t, a.stops)
	assert.Len(t, a.purges, 1)
}

func TestResolver_RetryFailureIsNotRetriedAgain(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99), replayConflict(7, 4000, 100)}
	m := &recordedMetrics{}

	out, err := newTestResolver(a).WithMetrics(m).Purge(context.Background(), 7, 4000)
	require.Error(t, err)
	assert.Equal(t, []int64{99}, a.stops)
	assert.Len(t, a.purges, 2)
	assert.Equal(t, 2, out.Attempts)

	var failed *PurgeFailedError
	require.ErrorAs(t, err, &failed)
	assert.True(t, failed.Conflict)
	assert.Equal(t, int64(99), failed.ReplaySessionID)
	assert.Equal(t, 2, failed.Attempts)
	assert.Equal(t, []string{purgeResultConflict, purgeResultConflict}, m.attempts)
}

func TestResolver_StopFailureAbortsWithoutRetry(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}
	a.stopErr = errors.New("control channel closed")

	_, err := newTestResolver(a).Purge(context.Background(), 7, 4000)
	require.Error(t, err)
	assert.Equal(t, []int64{99}, a.stops)
	assert.Len(t, a.purges, 1)

	var failed *PurgeFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Attempts)
}

func TestResolver_ReplayAlreadyGoneStillRetries(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}
	a.stopErr = &archive.ServiceError{Op: archive.OpStopReplay, Code: archive.CodeUnknownReplay, Message: "unknown replay session 99"}
	m := &recordedMetrics{}

	out, err := newTestResolver(a).WithMetrics(m).Purge(context.Background(), 7, 4000)
	require.NoError(t, err)
	assert.Len(t, a.purges, 2)
	assert.Equal(t, 2, out.Attempts)
	assert.Equal(t, 0, m.stopped)
}

func TestResolver_GraceDelayBetweenStopAndRetry(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}

	r := NewResolver(a, time.Second, 250*time.Millisecond)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		assert.Len(t, a.stops, 1, "grace delay must follow the stop")
		assert.Len(t, a.purges, 1, "grace delay must precede the retry")
		slept = append(slept, d)
		return nil
	}

	_, err := r.Purge(context.Background(), 7, 4000)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, slept)
}

func TestResolver_CancelledDuringGrace(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(a, time.Second, time.Hour).Purge(ctx, 7, 4000)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, a.purges, 1)
}

func TestResolver_EachCallHasDeadline(t *testing.T) {
	a := newScriptedArchive()
	a.purgeErrs = []error{replayConflict(7, 4000, 99)}

	_, err := newTestResolver(a).Purge(context.Background(), 7, 4000)
	require.NoError(t, err)
	require.Len(t, a.deadline, 3)
	for i, ok := range a.deadline {
		assert.True(t, ok, "call %d ran without a deadline", i)
	}
}

func TestResolver_AgainstMemoryArchive(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	id, err := mem.StartRecording("aeron:ipc", 1, 0, 1000)
	require.NoError(t, err)
	_, err = mem.Append(id, 5000)
	require.NoError(t, err)
	replay, err := mem.StartReplay(ctx, id, 0, 5000, "aeron:udp?endpoint=localhost:20122", 2)
	require.NoError(t, err)

	out, err := newTestResolver(mem).Purge(ctx, id, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.DeletedSegments)
	assert.Equal(t, replay, out.ReplaySessionID)
	assert.Empty(t, mem.ReplaySessions())
	assert.Equal(t, 2, mem.Calls(archive.OpPurgeSegments))
	assert.Equal(t, 1, mem.Calls(archive.OpStopReplay))

	d, err := mem.ListRecording(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), d.StartPosition)
}
