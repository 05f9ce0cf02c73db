package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/starquake/horizon/internal/archive"
	"github.com/starquake/horizon/internal/archive/rpc"
	"github.com/starquake/horizon/internal/retention"
)

// ReplayRequest identifies the recording to replay and where to send it.
type ReplayRequest struct {
	Channel        string
	StreamID       int32
	ReplayChannel  string
	ReplayStreamID int32
}

// ReplayResult describes a started replay session.
type ReplayResult struct {
	RecordingID     int64
	ReplaySessionID int64
	Position        int64
	Length          int64
}

// StartLatestReplay replays the newest recording on the request's channel
// and stream from its start position. An active recording is replayed
// without bound; a stopped one up to its stop position.
func StartLatestReplay(ctx context.Context, client archive.Client, rpcTimeout time.Duration, req ReplayRequest) (ReplayResult, error) {
	desc, found, err := retention.NewDirectory(client, rpcTimeout).FindLatestRecording(ctx, req.Channel, req.StreamID)
	if err != nil {
		return ReplayResult{}, err
	}
	if !found {
		return ReplayResult{}, fmt.Errorf("no recording on %s stream %d", req.Channel, req.StreamID)
	}

	length := archive.NullPosition
	if !desc.IsActive() {
		length = desc.StopPosition - desc.StartPosition
	}

	callCtx := ctx
	if rpcTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, rpcTimeout)
		defer cancel()
	}
	id, err := client.StartReplay(callCtx, desc.RecordingID, desc.StartPosition, length, req.ReplayChannel, req.ReplayStreamID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("start replay of recording %d: %w", desc.RecordingID, err)
	}
	return ReplayResult{
		RecordingID:     desc.RecordingID,
		ReplaySessionID: id,
		Position:        desc.StartPosition,
		Length:          length,
	}, nil
}

func runReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	archiveAddr := fs.String("archive", "", "Override archive control endpoint (e.g., localhost:8010)")
	channel := fs.String("channel", "", "Recorded channel (default: replay.channel)")
	streamID := fs.Int("stream-id", -1, "Recorded stream ID (default: replay.streamId)")
	replayChannel := fs.String("replay-channel", "", "Channel the replay is sent to (default: replay.replayChannel)")
	replayStreamID := fs.Int("replay-stream-id", -1, "Stream ID the replay is sent to (default: replay.replayStreamId)")

	fs.Usage = func() {
		fmt.Println(`Usage: horizond replay [options]

Start a replay of the latest recording on a channel and stream, from the
recording's start position, and print the replay session ID.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	if *archiveAddr != "" {
		cfg.Archive.ControlEndpoint = *archiveAddr
	}
	logger := newLogger(cfg)

	req := ReplayRequest{
		Channel:        cfg.Replay.Channel,
		StreamID:       cfg.Replay.StreamID,
		ReplayChannel:  cfg.Replay.ReplayChannel,
		ReplayStreamID: cfg.Replay.ReplayStreamID,
	}
	if *channel != "" {
		req.Channel = *channel
	}
	if *streamID >= 0 {
		req.StreamID = int32(*streamID)
	}
	if *replayChannel != "" {
		req.ReplayChannel = *replayChannel
	}
	if *replayStreamID >= 0 {
		req.ReplayStreamID = int32(*replayStreamID)
	}

	timeout := time.Duration(cfg.Archive.RequestTimeoutMs) * time.Millisecond
	client, err := rpc.Dial(rpc.Config{Target: cfg.Archive.ControlEndpoint, RequestTimeout: timeout})
	if err != nil {
		logger.Errorf("failed to dial archive", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer client.Close()

	result, err := StartLatestReplay(context.Background(), client, timeout, req)
	if err != nil {
		logger.Errorf("failed to start replay", map[string]any{"error": err.Error()})
		client.Close()
		os.Exit(1)
	}
	logger.Infof("replay started", map[string]any{
		"recordingId":     result.RecordingID,
		"replaySessionId": result.ReplaySessionID,
		"position":        result.Position,
		"length":          result.Length,
	})
	fmt.Println(result.ReplaySessionID)
}
