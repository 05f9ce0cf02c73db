package oxia

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starquake/horizon/internal/metadata"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Namespace: "default"}); err == nil {
		t.Error("expected error without service address")
	}
	if _, err := New(Config{ServiceAddress: "localhost:6648"}); err == nil {
		t.Error("expected error without namespace")
	}
}

func TestStorePutGetDelete(t *testing.T) {
	store := NewTestStore(t, StartTestServer(t))
	ctx := context.Background()
	key := "/horizon/test/put-get-delete"

	res, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if res.Exists {
		t.Fatal("expected missing key")
	}

	v1, err := store.Put(ctx, key, []byte("a"), metadata.WithExpectNotExists())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v1 != 1 {
		t.Errorf("first version = %d, want 1", v1)
	}

	if _, err := store.Put(ctx, key, []byte("b"), metadata.WithExpectNotExists()); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Errorf("Put existing with expect-not-exists: got %v, want ErrVersionMismatch", err)
	}

	v2, err := store.Put(ctx, key, []byte("c"), metadata.WithExpectedVersion(v1))
	if err != nil {
		t.Fatalf("conditional Put: %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("second version = %d, want %d", v2, v1+1)
	}

	res, err = store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !res.Exists || string(res.Value) != "c" || res.Version != v2 {
		t.Errorf("Get = %+v, want value c at version %d", res, v2)
	}

	stale := v1
	if err := store.Delete(ctx, key, &stale); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Errorf("Delete stale version: got %v, want ErrVersionMismatch", err)
	}
	if err := store.Delete(ctx, key, &v2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, key, nil); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
}

func TestStoreEphemeralReleasedOnClose(t *testing.T) {
	addr := StartTestServer(t)
	owner, err := New(Config{ServiceAddress: addr, Namespace: "default", SessionTimeout: minSessionTimeout})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	observer := NewTestStore(t, addr)

	ctx := context.Background()
	key := "/horizon/test/ephemeral"
	if _, err := owner.PutEphemeral(ctx, key, []byte("owner"), metadata.WithExpectNotExists()); err != nil {
		t.Fatalf("PutEphemeral: %v", err)
	}
	if _, err := observer.PutEphemeral(ctx, key, []byte("observer"), metadata.WithExpectNotExists()); !errors.Is(err, metadata.ErrVersionMismatch) {
		t.Fatalf("second PutEphemeral: got %v, want ErrVersionMismatch", err)
	}

	if err := owner.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.Now().Add(2 * minSessionTimeout)
	for time.Now().Before(deadline) {
		res, err := observer.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !res.Exists {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("ephemeral key survived owner close")
}

func TestStoreClosed(t *testing.T) {
	store := NewTestStore(t, StartTestServer(t))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := store.Get(context.Background(), "/k"); !errors.Is(err, metadata.ErrStoreClosed) {
		t.Errorf("Get after close: got %v, want ErrStoreClosed", err)
	}
}
