package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/starquake/horizon/internal/config"
	"github.com/starquake/horizon/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		fmt.Printf("horizond version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "retention":
		runRetention(os.Args[2:])
	case "archive-sim":
		runArchiveSim(os.Args[2:])
	case "replay":
		runReplay(os.Args[2:])
	case "counters":
		runCounters(os.Args[2:])
	case "audit":
		runAudit(os.Args[2:])
	case "version":
		fmt.Printf("horizond version %s (built %s, commit %s)\n", version, buildTime, gitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: horizond <command> [options]

Commands:
  retention     Run the retention controller against an archive
  archive-sim   Serve an in-memory archive with a live recording
  replay        Start a replay of the latest recording on a channel
  counters      Print a report of a counters file
  audit         List or print archived tick events
  version       Print version information

Run 'horizond <command> --help' for more information on a command.`)
}

func loadConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
}

func runRetention(args []string) {
	fs := flag.NewFlagSet("retention", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	archiveAddr := fs.String("archive", "", "Override archive control endpoint (e.g., localhost:8010)")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics endpoint address (e.g., :9090)")
	countersPath := fs.String("counters", "", "Override counters file path")
	holderID := fs.String("holder-id", "", "Override lease holder ID (default: hostname plus a random UUID)")

	fs.Usage = func() {
		fmt.Println(`Usage: horizond retention [options]

Run the retention controller.

Every interval the controller reports the host counters, locates the
active recording, and purges whole segments no longer needed, stopping a
replay that blocks the purge and retrying once.

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
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *countersPath != "" {
		cfg.Counters.Path = *countersPath
	}
	logger := newLogger(cfg)

	opts := RetentionOptions{
		Config:    cfg,
		Logger:    logger,
		HolderID:  *holderID,
		Version:   version,
		GitCommit: gitCommit,
	}
	if opts.HolderID == "" {
		opts.HolderID = defaultHolderID()
	}

	svc, err := NewRetention(opts)
	if err != nil {
		logger.Errorf("failed to create retention controller", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	runUntilSignal(logger, "retention controller", svc.Start, svc.Shutdown)
}

func defaultHolderID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()
}

// runUntilSignal runs start until it fails or SIGINT/SIGTERM arrives, then
// calls shutdown with a bounded deadline.
func runUntilSignal(logger *logging.Logger, name string, start func(context.Context) error, shutdown func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Infof("received shutdown signal", map[string]any{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Errorf(name+" error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	logger.Info(name + " shutdown complete")
}
