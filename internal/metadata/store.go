// Package metadata defines the key-value store Horizon uses for
// coordination between controller instances. The production implementation
// is backed by Oxia (package oxia); MockStore serves tests.
package metadata

import (
	"context"
	"errors"
)

var (
	// ErrVersionMismatch is returned when a conditional write finds a
	// different version than expected.
	ErrVersionMismatch = errors.New("metadata: version mismatch")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("metadata: store closed")
)

// Version is a key's version. Zero means the key has never been written.
type Version int64

// GetResult is the result of a Get.
type GetResult struct {
	Value   []byte
	Version Version
	Exists  bool
}

// PutOption configures Put and PutEphemeral.
type PutOption func(*putOptions)

type putOptions struct {
	expectNotExists bool
	expectedVersion *Version
}

// WithExpectNotExists fails the write with ErrVersionMismatch if the key
// already exists.
func WithExpectNotExists() PutOption {
	return func(o *putOptions) { o.expectNotExists = true }
}

// WithExpectedVersion fails the write with ErrVersionMismatch unless the
// key is currently at version v.
func WithExpectedVersion(v Version) PutOption {
	return func(o *putOptions) { o.expectedVersion = &v }
}

// ResolvePutOptions applies opts and returns the resulting conditions.
func ResolvePutOptions(opts []PutOption) (expectNotExists bool, expectedVersion *Version) {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.expectNotExists, o.expectedVersion
}

// Store is the subset of a metadata store the controller needs.
type Store interface {
	Get(ctx context.Context, key string) (GetResult, error)
	Put(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// PutEphemeral writes a key that is deleted when the writer's session
	// ends, whether by Close or by session expiry after a crash.
	PutEphemeral(ctx context.Context, key string, value []byte, opts ...PutOption) (Version, error)

	// Delete removes a key. Deleting a missing key is not an error. With
	// a non-nil expectedVersion the delete is conditional.
	Delete(ctx context.Context, key string, expectedVersion *Version) error

	Close() error
}
