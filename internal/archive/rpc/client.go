package rpc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/starquake/horizon/internal/archive"
)

// DefaultRequestTimeout bounds calls whose context carries no deadline.
const DefaultRequestTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// Target is the archive control endpoint, e.g. "localhost:8010".
	Target string

	// RequestTimeout bounds each call when the caller's context has no
	// deadline. Default: DefaultRequestTimeout.
	RequestTimeout time.Duration

	// DialOptions are appended to the defaults (insecure transport, JSON
	// codec).
	DialOptions []grpc.DialOption
}

// Client implements archive.Client against a remote archive.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ archive.Client = (*Client)(nil)

// Dial creates a client. The connection is established lazily on the
// first call.
func Dial(cfg Config) (*Client, error) {
	if cfg.Target == "" {
		return nil, errors.New("archive rpc: target is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive rpc: dial %s: %w", cfg.Target, err)
	}
	return &Client{conn: conn, timeout: cfg.RequestTimeout}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) ListRecordings(ctx context.Context, fromRecordingID int64, recordCount int32) ([]archive.RecordingDescriptor, error) {
	var resp listRecordingsResponse
	err := c.invoke(ctx, methodListRecordings, archive.OpListRecordings,
		&listRecordingsRequest{FromRecordingID: fromRecordingID, RecordCount: recordCount}, &resp)
	return resp.Recordings, err
}

func (c *Client) ListRecordingsForURI(ctx context.Context, fromRecordingID int64, recordCount int32, channel string, streamID int32) ([]archive.RecordingDescriptor, error) {
	var resp listRecordingsResponse
	err := c.invoke(ctx, methodListRecordingsForURI, archive.OpListRecordingsForURI,
		&listRecordingsRequest{FromRecordingID: fromRecordingID, RecordCount: recordCount, Channel: channel, StreamID: streamID}, &resp)
	return resp.Recordings, err
}

func (c *Client) ListRecording(ctx context.Context, recordingID int64) (archive.RecordingDescriptor, error) {
	var resp recordingResponse
	err := c.invoke(ctx, methodListRecording, archive.OpListRecording, &recordingRequest{RecordingID: recordingID}, &resp)
	return resp.Recording, err
}

func (c *Client) RecordingPosition(ctx context.Context, recordingID int64) (int64, error) {
	var resp positionResponse
	if err := c.invoke(ctx, methodRecordingPosition, archive.OpRecordingPosition, &recordingRequest{RecordingID: recordingID}, &resp); err != nil {
		return archive.NullPosition, err
	}
	return resp.Position, nil
}

func (c *Client) PurgeSegments(ctx context.Context, recordingID, newStartPosition int64) (int64, error) {
	var resp purgeSegmentsResponse
	err := c.invoke(ctx, methodPurgeSegments, archive.OpPurgeSegments,
		&purgeSegmentsRequest{RecordingID: recordingID, NewStartPosition: newStartPosition}, &resp)
	return resp.DeletedSegments, err
}

func (c *Client) StopReplay(ctx context.Context, replaySessionID int64) error {
	return c.invoke(ctx, methodStopReplay, archive.OpStopReplay, &stopReplayRequest{ReplaySessionID: replaySessionID}, &emptyResponse{})
}

func (c *Client) StartReplay(ctx context.Context, recordingID, position, length int64, replayChannel string, replayStreamID int32) (int64, error) {
	var resp startReplayResponse
	err := c.invoke(ctx, methodStartReplay, archive.OpStartReplay, &startReplayRequest{
		RecordingID:    recordingID,
		Position:       position,
		Length:         length,
		ReplayChannel:  replayChannel,
		ReplayStreamID: replayStreamID,
	}, &resp)
	return resp.ReplaySessionID, err
}

func (c *Client) invoke(ctx context.Context, method, op string, req, resp any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var trailer metadata.MD
	err := c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.Trailer(&trailer))
	if err == nil {
		return nil
	}
	return fromStatus(op, err, trailer)
}

// fromStatus rebuilds an archive.ServiceError when the archive attached an
// error code; anything else is a transport failure.
func fromStatus(op string, err error, trailer metadata.MD) error {
	st, _ := status.FromError(err)
	if vals := trailer.Get(trailerErrorCode); len(vals) > 0 {
		if code, perr := strconv.Atoi(vals[0]); perr == nil {
			seOp := op
			if ops := trailer.Get(trailerErrorOp); len(ops) > 0 && ops[0] != "" {
				seOp = ops[0]
			}
			return &archive.ServiceError{Op: seOp, Code: archive.Code(code), Message: st.Message()}
		}
	}
	return fmt.Errorf("archive rpc %s: %w", op, err)
}
