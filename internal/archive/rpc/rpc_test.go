package rpc

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/starquake/horizon/internal/archive"
)

// startArchive serves mem over an in-process listener and returns a
// connected client.
func startArchive(t *testing.T, mem archive.Client) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewServer(mem)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial(Config{
		Target:         "passthrough:///bufnet",
		RequestTimeout: 5 * time.Second,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_ListingAndPosition(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	id, err := mem.StartRecording("aeron:udp?endpoint=localhost:40456", 10, 0, 1024)
	require.NoError(t, err)
	_, _ = mem.Append(id, 3072)
	stopped, _ := mem.StartRecording("aeron:ipc", 20, 0, 1024)
	_, _ = mem.Append(stopped, 100)
	require.NoError(t, mem.StopRecording(stopped))

	c := startArchive(t, mem)

	recs, err := c.ListRecordings(ctx, 0, archive.MaxRecordCount)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, archive.NullPosition, recs[0].StopPosition)
	assert.Equal(t, int64(100), recs[1].StopPosition)

	filtered, err := c.ListRecordingsForURI(ctx, 0, archive.MaxRecordCount, "aeron:ipc", 20)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, stopped, filtered[0].RecordingID)

	d, err := c.ListRecording(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), d.SegmentFileLength)

	pos, err := c.RecordingPosition(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(3072), pos)

	pos, err = c.RecordingPosition(ctx, stopped)
	require.NoError(t, err)
	assert.Equal(t, archive.NullPosition, pos)
}

func TestClient_ServiceErrorsSurviveTransport(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	c := startArchive(t, mem)

	_, err := c.ListRecording(ctx, 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, archive.ErrRecordingNotFound)

	se, ok := archive.AsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, archive.OpListRecording, se.Op)
	assert.Equal(t, "unknown recording 404", se.Message)

	err = c.StopReplay(ctx, 5)
	assert.ErrorIs(t, err, archive.ErrReplayNotFound)
}

func TestClient_ReplayConflictIsClassifiable(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	id, _ := mem.StartRecording("aeron:ipc", 10, 0, 1000)
	_, _ = mem.Append(id, 5000)

	c := startArchive(t, mem)

	replayID, err := c.StartReplay(ctx, id, 0, math.MaxInt64, "aeron:udp?endpoint=replay:1", 11)
	require.NoError(t, err)

	_, err = c.PurgeSegments(ctx, id, 4000)
	r := archive.ClassifyPurgeError(err)
	require.True(t, r.Blocked, "expected conflict, got %v", err)
	assert.Equal(t, replayID, r.ReplaySessionID)

	require.NoError(t, c.StopReplay(ctx, replayID))

	deleted, err := c.PurgeSegments(ctx, id, 4000)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}

func TestClient_InternalErrorsAreTransportFailures(t *testing.T) {
	ctx := context.Background()
	mem := archive.NewMemory()
	mem.FailNext(archive.OpListRecordings, errors.New("catalog corrupted"))
	c := startArchive(t, mem)

	_, err := c.ListRecordings(ctx, 0, archive.MaxRecordCount)
	require.Error(t, err)

	_, isService := archive.AsServiceError(err)
	assert.False(t, isService)
	assert.Equal(t, codes.Internal, status.Code(errors.Unwrap(err)))
}

func TestClient_UnreachableArchiveTimesOut(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	c, err := Dial(Config{
		Target:         "passthrough:///closed",
		RequestTimeout: 200 * time.Millisecond,
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ListRecordings(context.Background(), 0, archive.MaxRecordCount)
	require.Error(t, err)
	assert.False(t, archive.ClassifyPurgeError(err).Blocked)
}

func TestDial_RequiresTarget(t *testing.T) {
	_, err := Dial(Config{})
	assert.Error(t, err)
}
