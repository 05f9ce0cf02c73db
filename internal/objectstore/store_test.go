package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	op      string
	success bool
}

type opRecorder struct {
	ops []recordedOp
}

func (r *opRecorder) RecordOperation(operation string, _ float64, success bool) {
	r.ops = append(r.ops, recordedOp{op: operation, success: success})
}

func put(t *testing.T, s Store, key, data string, opts PutOptions) error {
	t.Helper()
	return s.Put(context.Background(), key, bytes.NewReader([]byte(data)), int64(len(data)), "text/plain", opts)
}

func TestMockStore_PutGetListDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMockStore()

	require.NoError(t, put(t, s, "events/b", "two", PutOptions{Metadata: map[string]string{"count": "2"}}))
	require.NoError(t, put(t, s, "events/a", "one", PutOptions{}))
	require.NoError(t, put(t, s, "other/c", "three", PutOptions{}))

	rc, err := s.Get(ctx, "events/b")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "two", string(data))

	objs, err := s.List(ctx, "events/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "events/a", objs[0].Key)
	assert.Equal(t, "events/b", objs[1].Key)
	assert.Equal(t, "2", objs[1].Metadata["count"])
	assert.Equal(t, int64(3), objs[1].Size)

	require.NoError(t, s.Delete(ctx, "events/a"))
	require.NoError(t, s.Delete(ctx, "events/a"))
	_, err = s.Get(ctx, "events/a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_IfNoneMatch(t *testing.T) {
	s := NewMockStore()
	require.NoError(t, put(t, s, "k", "v1", PutOptions{IfNoneMatch: "*"}))
	err := put(t, s, "k", "v2", PutOptions{IfNoneMatch: "*"})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestMockStore_SizeMismatch(t *testing.T) {
	s := NewMockStore()
	err := s.Put(context.Background(), "k", bytes.NewReader([]byte("abc")), 5, "text/plain", PutOptions{})
	require.Error(t, err)
}

func TestMockStore_Closed(t *testing.T) {
	s := NewMockStore()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, put(t, s, "k", "v", PutOptions{}), ErrClosed)
	_, err := s.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInstrumentedStore_RecordsOperations(t *testing.T) {
	mock := NewMockStore()
	rec := &opRecorder{}
	s := NewInstrumentedStore(mock, rec)
	ctx := context.Background()

	require.NoError(t, put(t, s, "k", "v", PutOptions{}))
	_, err := s.Get(ctx, "missing")
	require.Error(t, err)
	_, err = s.List(ctx, "")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "k"))

	mock.PutErr = errors.New("unavailable")
	require.Error(t, put(t, s, "k", "v", PutOptions{}))

	assert.Equal(t, []recordedOp{
		{OpPut, true},
		{OpGet, false},
		{OpList, true},
		{OpDelete, true},
		{OpPut, false},
	}, rec.ops)
}

func TestInstrumentedStore_NilRecorder(t *testing.T) {
	s := NewInstrumentedStore(NewMockStore(), nil)
	require.NoError(t, put(t, s, "k", "v", PutOptions{}))
}

func TestObjectError_Unwrap(t *testing.T) {
	err := &ObjectError{Op: "Get", Key: "k", Err: ErrNotFound}
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `Get "k"`)
}
