// Package objectstore is the S3-compatible storage the audit archive
// writes tick events to.
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/vnd.apache.parquet", objectstore.PutOptions{})
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("objectstore: object not found")

	// ErrPreconditionFailed is returned when a conditional write fails.
	ErrPreconditionFailed = errors.New("objectstore: precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("objectstore: bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission.
	ErrAccessDenied = errors.New("objectstore: access denied")

	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("objectstore: store is closed")
)

// ObjectError wraps an error with the object key.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta describes a stored object.
type ObjectMeta struct {
	Key  string
	Size int64

	// LastModified is in Unix milliseconds.
	LastModified int64

	Metadata map[string]string
}

// PutOptions configures a Put.
type PutOptions struct {
	// Metadata is stored with the object as user-defined headers.
	Metadata map[string]string

	// IfNoneMatch set to "*" fails the Put with ErrPreconditionFailed when
	// the key already exists.
	IfNoneMatch string
}

// Store is an S3-compatible bucket. Implementations are safe for
// concurrent use.
type Store interface {
	// Put stores size bytes read from reader at key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error

	// Get returns the object's body. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns objects under prefix in lexicographic key order.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	Close() error
}
