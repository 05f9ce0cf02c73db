package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/starquake/horizon/internal/archive"
	"github.com/starquake/horizon/internal/archive/rpc"
	"github.com/starquake/horizon/internal/counters"
	"github.com/starquake/horizon/internal/logging"
)

// SimulatorOptions configures an in-memory archive served over RPC.
type SimulatorOptions struct {
	ListenAddr        string
	CountersPath      string
	CountersCapacity  int
	Channel           string
	StreamID          int32
	ReplayChannel     string
	ReplayStreamID    int32
	SegmentFileLength int64

	// Every AppendInterval the recording grows by AppendBytes and the
	// lagging replay, if enabled, reads ReplayBytes further.
	AppendInterval time.Duration
	AppendBytes    int64
	ReplayBytes    int64
	LaggingReplay  bool

	Logger *logging.Logger
}

// Simulator is a live archive with one growing recording.
type Simulator struct {
	opts     SimulatorOptions
	logger   *logging.Logger
	archive  *archive.Memory
	registry *counters.FileRegistry
	server   *rpc.Server
	listener net.Listener

	recordingID    int64
	replayID       int64
	replayPosition int64

	mu     sync.Mutex
	doneCh chan struct{}
}

// NewSimulator creates the counters file, binds the listener and starts a
// recording. Serving begins with Start.
func NewSimulator(opts SimulatorOptions) (*Simulator, error) {
	if opts.SegmentFileLength <= 0 {
		return nil, fmt.Errorf("segment file length must be positive, got %d", opts.SegmentFileLength)
	}
	if opts.AppendInterval <= 0 {
		return nil, fmt.Errorf("append interval must be positive, got %s", opts.AppendInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Global()
	}

	s := &Simulator{opts: opts, logger: logger, replayID: -1}

	var memOpts []archive.MemoryOption
	if opts.CountersPath != "" {
		registry, err := counters.CreateFile(opts.CountersPath, opts.CountersCapacity)
		if err != nil {
			return nil, fmt.Errorf("create counters: %w", err)
		}
		s.registry = registry
		memOpts = append(memOpts, archive.WithCounters(registry))
	}
	s.archive = archive.NewMemory(memOpts...)

	id, err := s.archive.StartRecording(opts.Channel, opts.StreamID, 0, opts.SegmentFileLength)
	if err != nil {
		s.closeRegistry()
		return nil, fmt.Errorf("start recording: %w", err)
	}
	s.recordingID = id

	lis, err := net.Listen("tcp", opts.ListenAddr)
	if err != nil {
		s.closeRegistry()
		return nil, fmt.Errorf("listen on %s: %w", opts.ListenAddr, err)
	}
	s.listener = lis
	s.server = rpc.NewServer(s.archive)
	return s, nil
}

// Addr returns the bound control address.
func (s *Simulator) Addr() string {
	return s.listener.Addr().String()
}

// Archive returns the simulated archive.
func (s *Simulator) Archive() *archive.Memory {
	return s.archive
}

// RecordingID returns the simulated recording.
func (s *Simulator) RecordingID() int64 {
	return s.recordingID
}

// Start serves the archive and drives the recording until ctx is done.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.doneCh != nil {
		s.mu.Unlock()
		return errors.New("simulator: already started")
	}
	s.doneCh = make(chan struct{})
	s.mu.Unlock()
	defer close(s.doneCh)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(s.listener)
	}()

	s.logger.Infof("archive simulator serving", map[string]any{
		"addr":              s.Addr(),
		"recordingId":       s.recordingID,
		"channel":           s.opts.Channel,
		"streamId":          s.opts.StreamID,
		"segmentFileLength": s.opts.SegmentFileLength,
		"counters":          s.opts.CountersPath,
	})

	ticker := time.NewTicker(s.opts.AppendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("serve archive: %w", err)
			}
			return nil
		case <-ticker.C:
			if err := s.step(ctx); err != nil {
				return err
			}
		}
	}
}

// step grows the recording and moves the lagging replay forward,
// restarting it from the recording's start when it has been stopped.
func (s *Simulator) step(ctx context.Context) error {
	position, err := s.archive.Append(s.recordingID, s.opts.AppendBytes)
	if err != nil {
		return fmt.Errorf("append to recording %d: %w", s.recordingID, err)
	}
	if !s.opts.LaggingReplay {
		return nil
	}

	if s.replayID >= 0 {
		next := min(s.replayPosition+s.opts.ReplayBytes, position)
		err := s.archive.AdvanceReplay(s.replayID, next)
		if err == nil {
			s.replayPosition = next
			return nil
		}
		if !errors.Is(err, archive.ErrReplayNotFound) {
			return fmt.Errorf("advance replay %d: %w", s.replayID, err)
		}
		s.logger.Infof("simulated replay was stopped", map[string]any{
			"replaySessionId": s.replayID,
			"position":        s.replayPosition,
		})
		s.replayID = -1
	}

	desc, err := s.archive.ListRecording(ctx, s.recordingID)
	if err != nil {
		return fmt.Errorf("describe recording %d: %w", s.recordingID, err)
	}
	id, err := s.archive.StartReplay(ctx, s.recordingID, desc.StartPosition, archive.NullPosition, s.opts.ReplayChannel, s.opts.ReplayStreamID)
	if err != nil {
		return fmt.Errorf("start replay: %w", err)
	}
	s.replayID = id
	s.replayPosition = desc.StartPosition
	s.logger.Debugf("simulated replay started", map[string]any{
		"replaySessionId": id,
		"position":        desc.StartPosition,
	})
	return nil
}

// Shutdown stops serving and releases the counters file.
func (s *Simulator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	doneCh := s.doneCh
	s.mu.Unlock()

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-ctx.Done():
			s.server.Stop()
			return ctx.Err()
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.server.Stop()
	}
	if doneCh == nil {
		_ = s.listener.Close()
	}
	return s.closeRegistry()
}

func (s *Simulator) closeRegistry() error {
	if s.registry == nil {
		return nil
	}
	return s.registry.Close()
}

func runArchiveSim(args []string) {
	fs := flag.NewFlagSet("archive-sim", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	listenAddr := fs.String("listen", "", "Control listen address (default: archive.controlEndpoint)")
	countersPath := fs.String("counters", "", "Counters file to create (default: counters.path)")
	capacity := fs.Int("counters-capacity", 1024, "Number of counter slots")
	segmentLength := fs.Int64("segment-length", 64*1024*1024, "Segment file length in bytes")
	interval := fs.Duration("append-interval", time.Second, "Time between appends")
	appendBytes := fs.Int64("append-bytes", 16*1024*1024, "Bytes appended to the recording per interval")
	replayBytes := fs.Int64("replay-bytes", 4*1024*1024, "Bytes the lagging replay reads per interval")
	lagging := fs.Bool("lagging-replay", true, "Keep a slow replay open on the recording")

	fs.Usage = func() {
		fmt.Println(`Usage: horizond archive-sim [options]

Serve an in-memory archive with one live recording over the control RPC.
The recording grows on a fixed interval and an optional lagging replay
reads behind it, so the retention controller meets replay conflicts.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(*configPath)
	logger := newLogger(cfg)

	opts := SimulatorOptions{
		ListenAddr:        cfg.Archive.ControlEndpoint,
		CountersPath:      cfg.Counters.Path,
		CountersCapacity:  *capacity,
		Channel:           cfg.Replay.Channel,
		StreamID:          cfg.Replay.StreamID,
		ReplayChannel:     cfg.Replay.ReplayChannel,
		ReplayStreamID:    cfg.Replay.ReplayStreamID,
		SegmentFileLength: *segmentLength,
		AppendInterval:    *interval,
		AppendBytes:       *appendBytes,
		ReplayBytes:       *replayBytes,
		LaggingReplay:     *lagging,
		Logger:            logger,
	}
	if *listenAddr != "" {
		opts.ListenAddr = *listenAddr
	}
	if *countersPath != "" {
		opts.CountersPath = *countersPath
	}

	sim, err := NewSimulator(opts)
	if err != nil {
		logger.Errorf("failed to create archive simulator", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	runUntilSignal(logger, "archive simulator", sim.Start, sim.Shutdown)
}
