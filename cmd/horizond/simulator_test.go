package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/starquake/horizon/internal/archive/rpc"
	"github.com/starquake/horizon/internal/config"
	"github.com/starquake/horizon/internal/counters"
	"github.com/starquake/horizon/internal/logging"
)

func newTestSimulatorOptions(t *testing.T) SimulatorOptions {
	t.Helper()
	cfg := config.Default()
	return SimulatorOptions{
		ListenAddr:        "127.0.0.1:0",
		CountersPath:      filepath.Join(t.TempDir(), "counters.dat"),
		CountersCapacity:  64,
		Channel:           cfg.Replay.Channel,
		StreamID:          cfg.Replay.StreamID,
		ReplayChannel:     cfg.Replay.ReplayChannel,
		ReplayStreamID:    cfg.Replay.ReplayStreamID,
		SegmentFileLength: 1024,
		AppendInterval:    10 * time.Millisecond,
		AppendBytes:       4096,
		ReplayBytes:       256,
		LaggingReplay:     true,
		Logger:            logging.Nop(),
	}
}

func TestNewSimulator_Validation(t *testing.T) {
	opts := newTestSimulatorOptions(t)
	opts.SegmentFileLength = 0
	if _, err := NewSimulator(opts); err == nil {
		t.Error("expected error for zero segment length")
	}

	opts = newTestSimulatorOptions(t)
	opts.AppendInterval = 0
	if _, err := NewSimulator(opts); err == nil {
		t.Error("expected error for zero append interval")
	}
}

func TestSimulator_StepStartsAndRestartsReplay(t *testing.T) {
	opts := newTestSimulatorOptions(t)
	sim, err := NewSimulator(opts)
	if err != nil {
		t.Fatalf("failed to create simulator: %v", err)
	}
	defer sim.Shutdown(context.Background())

	ctx := context.Background()
	if err := sim.step(ctx); err != nil {
		t.Fatalf("first step: %v", err)
	}
	if sim.replayID < 0 {
		t.Fatal("expected a lagging replay after the first step")
	}
	first := sim.replayID

	if err := sim.step(ctx); err != nil {
		t.Fatalf("second step: %v", err)
	}
	if sim.replayPosition != opts.ReplayBytes {
		t.Errorf("replay position = %d, want %d", sim.replayPosition, opts.ReplayBytes)
	}

	if err := sim.Archive().StopReplay(ctx, first); err != nil {
		t.Fatalf("stop replay: %v", err)
	}
	if err := sim.step(ctx); err != nil {
		t.Fatalf("step after stop: %v", err)
	}
	if err := sim.step(ctx); err != nil {
		t.Fatalf("restart step: %v", err)
	}
	if sim.replayID == first || sim.replayID < 0 {
		t.Errorf("expected a new replay session, got %d (first %d)", sim.replayID, first)
	}

	registry, err := counters.OpenFile(opts.CountersPath)
	if err != nil {
		t.Fatalf("open counters: %v", err)
	}
	defer registry.Close()
	entries := counters.NewSnapshotReader(registry).Report()
	if n := counters.CountByType(entries, counters.TypeRecordingPosition); n != 1 {
		t.Errorf("recording counters = %d, want 1", n)
	}
	if n := counters.CountByType(entries, counters.TypeReplayPosition); n != 1 {
		t.Errorf("replay counters = %d, want 1", n)
	}
}

func TestSimulator_ServesArchive(t *testing.T) {
	opts := newTestSimulatorOptions(t)
	opts.LaggingReplay = false
	sim, err := NewSimulator(opts)
	if err != nil {
		t.Fatalf("failed to create simulator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sim.Start(ctx) }()

	client, err := rpc.Dial(rpc.Config{Target: sim.Addr(), RequestTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(5 * time.Second)
	var position int64
	for time.Now().Before(deadline) {
		position, err = client.RecordingPosition(ctx, sim.RecordingID())
		if err == nil && position > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if position <= 0 {
		t.Fatalf("recording never advanced: position=%d err=%v", position, err)
	}

	desc, err := client.ListRecording(ctx, sim.RecordingID())
	if err != nil {
		t.Fatalf("list recording: %v", err)
	}
	if !desc.IsActive() {
		t.Error("expected the simulated recording to be active")
	}
	if desc.SegmentFileLength != opts.SegmentFileLength {
		t.Errorf("segment length = %d, want %d", desc.SegmentFileLength, opts.SegmentFileLength)
	}
	if sessions := sim.Archive().ReplaySessions(); len(sessions) != 0 {
		t.Errorf("expected no replays without lagging replay, got %v", sessions)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("simulator did not stop")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := sim.Shutdown(shutdownCtx); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	if _, err := client.ListRecording(context.Background(), sim.RecordingID()); err == nil {
		t.Error("expected calls to fail after shutdown")
	}
}
