// Package audit archives retention tick events to object storage so
// purge history outlives log retention and the Kafka topic.
//
// Events are batched and written as immutable objects under
//
//	<prefix>/archive=<archiveId>/date=YYYY-MM-DD/<firstTimestampMs>-<uuid>.<ext>
//
// where ext is "parquet" or "jsonl" plus the codec suffix.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starquake/horizon/internal/events"
	"github.com/starquake/horizon/internal/logging"
	"github.com/starquake/horizon/internal/objectstore"
)

// Format is the object encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

// Content types written with each object.
const (
	ContentTypeParquet = "application/vnd.apache.parquet"
	ContentTypeJSONL   = "application/x-ndjson"
)

// Defaults applied by NewSink.
const (
	DefaultPrefix    = "horizon/events"
	DefaultBatchSize = 100

	// maxBufferedBatches bounds memory while the store is unreachable.
	maxBufferedBatches = 10

	closeFlushTimeout = 10 * time.Second
)

// Config configures a Sink.
type Config struct {
	ArchiveID string
	Prefix    string
	Format    Format

	// Codec compresses jsonl objects. Parquet pages are always zstd.
	Codec Codec

	BatchSize int
}

// Recorder receives audit metrics. *metrics.AuditMetrics implements it.
type Recorder interface {
	RecordWritten(n int)
	RecordDropped(n int)
}

// Sink buffers events and writes them to the store in batches. It
// implements events.Sink.
type Sink struct {
	store   objectstore.Store
	cfg     Config
	logger  *logging.Logger
	metrics Recorder
	now     func() time.Time
	newID   func() string

	mu      sync.Mutex
	pending []events.Event
	dropped int64
}

var _ events.Sink = (*Sink)(nil)

// NewSink creates a sink writing to store. The store is not closed by the
// sink.
func NewSink(store objectstore.Store, cfg Config) (*Sink, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Format == "" {
		cfg.Format = FormatParquet
	}
	if cfg.Format != FormatParquet && cfg.Format != FormatJSONL {
		return nil, fmt.Errorf("audit: unknown format %q", cfg.Format)
	}
	codec, err := ParseCodec(string(cfg.Codec))
	if err != nil {
		return nil, err
	}
	cfg.Codec = codec
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ArchiveID == "" {
		cfg.ArchiveID = "default"
	}
	return &Sink{
		store:  store,
		cfg:    cfg,
		logger: logging.Global(),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// WithLogger sets the logger.
func (s *Sink) WithLogger(logger *logging.Logger) *Sink {
	s.logger = logger
	return s
}

// WithMetrics records written and dropped events.
func (s *Sink) WithMetrics(m Recorder) *Sink {
	s.metrics = m
	return s
}

// Publish buffers e and flushes once a batch is full.
func (s *Sink) Publish(ctx context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, e)
	if limit := s.cfg.BatchSize * maxBufferedBatches; len(s.pending) > limit {
		drop := len(s.pending) - limit
		s.pending = append([]events.Event(nil), s.pending[drop:]...)
		s.dropped += int64(drop)
		if s.metrics != nil {
			s.metrics.RecordDropped(drop)
		}
		s.logger.Warnf("audit buffer full, dropped oldest events", map[string]any{
			"dropped": drop,
			"total":   s.dropped,
			"pending": len(s.pending),
		})
	}
	if len(s.pending) < s.cfg.BatchSize {
		return nil
	}
	return s.flushLocked(ctx)
}

// Flush writes every buffered event. On failure the events stay buffered
// for the next attempt.
func (s *Sink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx)
}

// Pending returns the number of buffered events.
func (s *Sink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (s *Sink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes what is buffered.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()
	return s.Flush(ctx)
}

func (s *Sink) flushLocked(ctx context.Context) error {
	for len(s.pending) > 0 {
		n := min(len(s.pending), s.cfg.BatchSize)
		if err := s.write(ctx, s.pending[:n]); err != nil {
			return err
		}
		s.pending = s.pending[n:]
	}
	s.pending = nil
	return nil
}

func (s *Sink) write(ctx context.Context, batch []events.Event) error {
	data, contentType, err := s.encode(batch)
	if err != nil {
		return err
	}

	first := batch[0].TimestampMs
	if first <= 0 {
		first = s.now().UnixMilli()
	}
	key := ObjectKey(s.cfg.Prefix, s.cfg.ArchiveID, time.UnixMilli(first).UTC(), first, s.newID(), s.extension())

	err = s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType, objectstore.PutOptions{
		IfNoneMatch: "*",
		Metadata: map[string]string{
			"event-count":   strconv.Itoa(len(batch)),
			"first-tick-id": batch[0].TickID,
			"last-tick-id":  batch[len(batch)-1].TickID,
		},
	})
	if err != nil {
		return fmt.Errorf("audit: write %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.RecordWritten(len(batch))
	}
	s.logger.Debugf("archived tick events", map[string]any{
		"key":    key,
		"events": len(batch),
		"bytes":  len(data),
	})
	return nil
}

func (s *Sink) encode(batch []events.Event) ([]byte, string, error) {
	if s.cfg.Format == FormatParquet {
		data, err := encodeParquet(batch)
		return data, ContentTypeParquet, err
	}

	var buf bytes.Buffer
	for _, e := range batch {
		line, err := e.Marshal()
		if err != nil {
			return nil, "", err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	data, err := compress(s.cfg.Codec, buf.Bytes())
	if err != nil {
		return nil, "", fmt.Errorf("audit: compress: %w", err)
	}
	return data, ContentTypeJSONL, nil
}

func (s *Sink) extension() string {
	if s.cfg.Format == FormatParquet {
		return "parquet"
	}
	return "jsonl" + s.cfg.Codec.Extension()
}

// ObjectKey builds the key of one archived batch.
func ObjectKey(prefix, archiveID string, day time.Time, firstTimestampMs int64, id, ext string) string {
	return fmt.Sprintf("%s/archive=%s/date=%s/%013d-%s.%s",
		prefix, archiveID, day.Format(time.DateOnly), firstTimestampMs, id, ext)
}

// ArchivePrefix is the key prefix holding every batch of archiveID.
func ArchivePrefix(prefix, archiveID string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s/archive=%s/", prefix, archiveID)
}
