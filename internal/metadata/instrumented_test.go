package metadata

import (
	"context"
	"errors"
	"testing"
)

type recordedOp struct {
	op      string
	success bool
}

type fakeRecorder struct {
	ops []recordedOp
}

func (r *fakeRecorder) RecordOperation(op string, _ float64, success bool) {
	r.ops = append(r.ops, recordedOp{op: op, success: success})
}

func TestInstrumentedStoreRecordsOperations(t *testing.T) {
	rec := &fakeRecorder{}
	store := NewInstrumentedStore(NewMockStore(), rec)
	ctx := context.Background()

	v, err := store.PutEphemeral(ctx, "/lease", []byte("a"), WithExpectNotExists())
	if err != nil {
		t.Fatalf("PutEphemeral: %v", err)
	}
	if _, err := store.PutEphemeral(ctx, "/lease", []byte("b"), WithExpectNotExists()); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := store.Get(ctx, "/lease"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := store.Delete(ctx, "/lease", &v); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []recordedOp{
		{OpPutEphemeral, true},
		{OpPutEphemeral, true},
		{OpGet, true},
		{OpDelete, true},
	}
	if len(rec.ops) != len(want) {
		t.Fatalf("recorded %d ops, want %d: %+v", len(rec.ops), len(want), rec.ops)
	}
	for i := range want {
		if rec.ops[i] != want[i] {
			t.Errorf("op %d = %+v, want %+v", i, rec.ops[i], want[i])
		}
	}
}

func TestInstrumentedStoreRecordsFailure(t *testing.T) {
	rec := &fakeRecorder{}
	mock := NewMockStore()
	store := NewInstrumentedStore(mock, rec)

	mock.FailNext(errors.New("unavailable"))
	if _, err := store.Put(context.Background(), "/k", []byte("v")); err == nil {
		t.Fatal("expected injected failure")
	}
	if len(rec.ops) != 1 || rec.ops[0] != (recordedOp{OpPut, false}) {
		t.Errorf("recorded %+v, want one failed put", rec.ops)
	}
}

func TestInstrumentedStoreNilRecorder(t *testing.T) {
	store := NewInstrumentedStore(NewMockStore(), nil)
	if _, err := store.Put(context.Background(), "/k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
}
