package metadata

import (
	"context"
	"errors"
	"time"
)

// Operation label values recorded by InstrumentedStore.
const (
	OpGet          = "get"
	OpPut          = "put"
	OpPutEphemeral = "put_ephemeral"
	OpDelete       = "delete"
)

// MetricsRecorder records store operation metrics. It keeps this package
// decoupled from the metrics package.
type MetricsRecorder interface {
	RecordOperation(operation string, durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

var _ Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps store. A nil metrics recorder passes every
// call straight through.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{store: store, metrics: metrics}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) (GetResult, error) {
	start := time.Now()
	res, err := s.store.Get(ctx, key)
	s.record(OpGet, start, err)
	return res, err
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	start := time.Now()
	v, err := s.store.Put(ctx, key, value, opts...)
	s.record(OpPut, start, err)
	return v, err
}

func (s *InstrumentedStore) PutEphemeral(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error) {
	start := time.Now()
	v, err := s.store.PutEphemeral(ctx, key, value, opts...)
	s.record(OpPutEphemeral, start, err)
	return v, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string, expectedVersion *Version) error {
	start := time.Now()
	err := s.store.Delete(ctx, key, expectedVersion)
	s.record(OpDelete, start, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

// A failed condition is a completed round trip, not a store failure.
func (s *InstrumentedStore) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	ok := err == nil || errors.Is(err, ErrVersionMismatch)
	s.metrics.RecordOperation(op, time.Since(start).Seconds(), ok)
}
