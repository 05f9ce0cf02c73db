package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starquake/horizon/internal/archive"
	"github.com/starquake/horizon/internal/audit"
	"github.com/starquake/horizon/internal/archive/rpc"
	"github.com/starquake/horizon/internal/config"
	"github.com/starquake/horizon/internal/counters"
	"github.com/starquake/horizon/internal/events"
	"github.com/starquake/horizon/internal/logging"
	"github.com/starquake/horizon/internal/metadata"
	metaoxia "github.com/starquake/horizon/internal/metadata/oxia"
	"github.com/starquake/horizon/internal/metrics"
	"github.com/starquake/horizon/internal/objectstore"
	s3store "github.com/starquake/horizon/internal/objectstore/s3"
	"github.com/starquake/horizon/internal/retention"
)

// RetentionOptions contains the configuration for creating a retention
// service.
type RetentionOptions struct {
	Config    *config.Config
	Logger    *logging.Logger
	HolderID  string
	Version   string
	GitCommit string

	// Registry receives every metric. Nil uses a fresh registry so several
	// services can run in one process.
	Registry *prometheus.Registry

	// Store overrides the Oxia metadata store.
	Store metadata.Store

	// Sink overrides the configured Kafka or log sink.
	Sink events.Sink

	// AuditStore overrides the S3 store of the audit archive.
	AuditStore objectstore.Store
}

// Retention is a running retention controller with its connections.
type Retention struct {
	opts          RetentionOptions
	logger        *logging.Logger
	client        *rpc.Client
	registryFile  *counters.FileRegistry
	store         metadata.Store
	auditStore    objectstore.Store
	lease         *retention.Lease
	sink          events.Sink
	controller    *retention.Controller
	metricsServer *metrics.Server

	mu      sync.Mutex
	started bool
	doneCh  chan struct{}
}

// NewRetention dials the archive and builds the controller. Connection
// failures here are fatal; everything after Start is tick-local.
func NewRetention(opts RetentionOptions) (*Retention, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.Global()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Retention{opts: opts, logger: logger}

	client, err := rpc.Dial(rpc.Config{
		Target:         cfg.Archive.ControlEndpoint,
		RequestTimeout: time.Duration(cfg.Archive.RequestTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("dial archive: %w", err)
	}
	r.client = client

	archiveClient := archive.NewInstrumentedClient(client, metrics.NewArchiveMetricsWithRegistry(reg))
	controller := retention.NewController(archiveClient, retention.Config{
		Interval:        time.Duration(cfg.Retention.IntervalMs) * time.Millisecond,
		RPCTimeout:      time.Duration(cfg.Retention.RPCTimeoutMs) * time.Millisecond,
		ReplayStopGrace: time.Duration(cfg.Retention.ReplayStopGraceMs) * time.Millisecond,
		PublishTimeout:  time.Duration(cfg.Events.PublishTimeoutMs) * time.Millisecond,
		ArchiveID:       cfg.Archive.ArchiveID,
	}).WithLogger(logger).WithMetrics(metrics.NewRetentionMetricsWithRegistry(reg))

	if cfg.Counters.Path != "" {
		file, err := counters.OpenFile(cfg.Counters.Path)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("open counters: %w", err)
		}
		r.registryFile = file
		controller.WithCounters(file)
		reg.MustRegister(metrics.NewCounterCollector(file))
	}

	store := opts.Store
	if store == nil && cfg.Metadata.OxiaEndpoint != "" {
		oxiaStore, err := metaoxia.New(metaoxia.Config{
			ServiceAddress: cfg.Metadata.OxiaEndpoint,
			Namespace:      cfg.Metadata.Namespace,
		})
		if err != nil {
			r.close()
			return nil, fmt.Errorf("connect metadata store: %w", err)
		}
		store = oxiaStore
	}
	if store != nil {
		r.store = metadata.NewInstrumentedStore(store, metrics.NewMetadataMetricsWithRegistry(reg))
		lease, err := retention.NewLease(r.store, cfg.Archive.ArchiveID, opts.HolderID)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("create lease: %w", err)
		}
		r.lease = lease
		controller.WithLease(lease)
	}

	sink := opts.Sink
	if sink == nil {
		var err error
		if sink, err = newEventsSink(cfg, opts.HolderID, logger); err != nil {
			r.close()
			return nil, err
		}
	}

	auditStore := opts.AuditStore
	if auditStore == nil && cfg.Audit.Bucket != "" {
		bucket, err := s3store.New(context.Background(), s3store.Config{
			Bucket:          cfg.Audit.Bucket,
			Region:          cfg.Audit.Region,
			Endpoint:        cfg.Audit.Endpoint,
			AccessKeyID:     cfg.Audit.AccessKey,
			SecretAccessKey: cfg.Audit.SecretKey,
			UsePathStyle:    cfg.Audit.UsePathStyle,
		})
		if err != nil {
			_ = sink.Close()
			r.close()
			return nil, fmt.Errorf("connect audit store: %w", err)
		}
		auditStore = bucket
	}
	if auditStore != nil {
		r.auditStore = objectstore.NewInstrumentedStore(auditStore, metrics.NewObjectStoreMetricsWithRegistry(reg))
		auditSink, err := audit.NewSink(r.auditStore, audit.Config{
			ArchiveID: cfg.Archive.ArchiveID,
			Prefix:    cfg.Audit.Prefix,
			Format:    audit.Format(cfg.Audit.Format),
			Codec:     audit.Codec(cfg.Audit.Compression),
			BatchSize: cfg.Audit.BatchSize,
		})
		if err != nil {
			_ = sink.Close()
			r.close()
			return nil, fmt.Errorf("create audit sink: %w", err)
		}
		auditSink.WithLogger(logger).WithMetrics(metrics.NewAuditMetricsWithRegistry(reg))
		sink = events.NewMultiSink(sink, auditSink)
	}
	r.sink = sink
	controller.WithEvents(sink)

	r.controller = controller
	if cfg.Observability.MetricsAddr != "" {
		r.metricsServer = metrics.NewServerWithRegistry(cfg.Observability.MetricsAddr, reg).WithLogger(logger)
	}
	return r, nil
}

// newEventsSink returns a Kafka sink when brokers are configured, creating
// the topic first if asked to, and a log sink otherwise.
func newEventsSink(cfg *config.Config, holderID string, logger *logging.Logger) (events.Sink, error) {
	brokers := cfg.Events.Brokers()
	if len(brokers) == 0 {
		return events.NewLogSink(logger), nil
	}

	if cfg.Events.CreateTopic {
		admin, err := events.NewTopicAdmin(brokers)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Archive.RequestTimeoutMs)*time.Millisecond)
		created, err := events.EnsureTopic(ctx, admin, cfg.Events.Topic, cfg.Events.TopicPartitions, cfg.Events.TopicReplicationFactor)
		cancel()
		admin.Close()
		if err != nil {
			return nil, err
		}
		if created {
			logger.Infof("created events topic", map[string]any{
				"topic":             cfg.Events.Topic,
				"partitions":        cfg.Events.TopicPartitions,
				"replicationFactor": cfg.Events.TopicReplicationFactor,
			})
		}
	}

	sink, err := events.NewKafkaSink(events.KafkaConfig{
		Brokers:         brokers,
		Topic:           cfg.Events.Topic,
		ClientID:        "horizon-" + holderID,
		DeliveryTimeout: time.Duration(cfg.Events.PublishTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("create events sink: %w", err)
	}
	return sink, nil
}

// Controller returns the underlying controller.
func (r *Retention) Controller() *retention.Controller {
	return r.controller
}

// MetricsAddr returns the bound metrics address, or "" without a server.
func (r *Retention) MetricsAddr() string {
	if r.metricsServer == nil {
		return ""
	}
	return r.metricsServer.Addr()
}

// Start serves metrics and runs the controller until ctx is cancelled.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("retention: already started")
	}
	r.started = true
	r.doneCh = make(chan struct{})
	r.mu.Unlock()
	defer close(r.doneCh)

	if r.metricsServer != nil {
		if err := r.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	r.logger.Infof("retention controller started", map[string]any{
		"archive":    r.opts.Config.Archive.ControlEndpoint,
		"archiveId":  r.opts.Config.Archive.ArchiveID,
		"intervalMs": r.opts.Config.Retention.IntervalMs,
		"leased":     r.lease != nil,
		"audited":    r.auditStore != nil,
		"holderId":   r.opts.HolderID,
		"version":    r.opts.Version,
	})

	err := r.controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown waits for the controller loop to exit, releases the lease and
// closes every connection. The caller cancels the context passed to Start
// first.
func (r *Retention) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	doneCh := r.doneCh
	r.mu.Unlock()

	if doneCh != nil {
		select {
		case <-doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	if r.lease != nil {
		if err := r.lease.Release(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metrics server: %w", err))
		}
	}
	errs = append(errs, r.close())
	return errors.Join(errs...)
}

func (r *Retention) close() error {
	var errs []error
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events sink: %w", err))
		}
	}
	if r.auditStore != nil {
		if err := r.auditStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close audit store: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close metadata store: %w", err))
		}
	}
	if r.registryFile != nil {
		if err := r.registryFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close counters: %w", err))
		}
	}
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive client: %w", err))
		}
	}
	return errors.Join(errs...)
}
