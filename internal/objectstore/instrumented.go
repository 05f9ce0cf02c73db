package objectstore

import (
	"context"
	"io"
	"time"
)

// Operation labels recorded by InstrumentedStore.
const (
	OpPut    = "put"
	OpGet    = "get"
	OpList   = "list"
	OpDelete = "delete"
)

// MetricsRecorder receives one observation per store call.
// *metrics.OperationMetrics implements it.
type MetricsRecorder interface {
	RecordOperation(operation string, durationSeconds float64, success bool)
}

// InstrumentedStore records latency and outcome of every call on the
// wrapped store.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

var _ Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps store. A nil recorder passes calls through.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	start := time.Now()
	err := s.store.Put(ctx, key, reader, size, contentType, opts)
	s.record(OpPut, start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.store.Get(ctx, key)
	s.record(OpGet, start, err)
	return rc, err
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) ([]ObjectMeta, error) {
	start := time.Now()
	objs, err := s.store.List(ctx, prefix)
	s.record(OpList, start, err)
	return objs, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.record(OpDelete, start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordOperation(op, time.Since(start).Seconds(), err == nil)
}
