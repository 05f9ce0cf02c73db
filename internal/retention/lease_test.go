package retention

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starquake/horizon/internal/metadata"
	"github.com/starquake/horizon/internal/metadata/keys"
)

func TestNewLease_Validates(t *testing.T) {
	store := metadata.NewMockStore()

	_, err := NewLease(store, "", "a")
	assert.ErrorIs(t, err, keys.ErrInvalidArchiveID)

	_, err = NewLease(store, "east", "")
	assert.ErrorIs(t, err, ErrInvalidHolderID)

	l, err := NewLease(store, "east", "a")
	require.NoError(t, err)
	assert.Equal(t, "/horizon/v1/retention/leases/east", l.Key())
}

func TestLease_AcquireRenewAndExclude(t *testing.T) {
	ctx := context.Background()
	store := metadata.NewMockStore()
	a, err := NewLease(store, "east", "controller-a")
	require.NoError(t, err)
	b, err := NewLease(store, "east", "controller-b")
	require.NoError(t, err)

	held, rec, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	assert.Equal(t, "controller-a", rec.HolderID)

	held, rec, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, "controller-a", rec.HolderID)
	assert.False(t, b.Held())

	held, _, err = a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held, "holder renews its own lease")

	res, err := store.Get(ctx, a.Key())
	require.NoError(t, err)
	var stored LeaseRecord
	require.NoError(t, json.Unmarshal(res.Value, &stored))
	assert.Equal(t, "east", stored.ArchiveID)
	assert.Equal(t, "controller-a", stored.HolderID)
}

func TestLease_TakeoverAfterSessionExpiry(t *testing.T) {
	ctx := context.Background()
	store := metadata.NewMockStore()
	a, _ := NewLease(store, "east", "controller-a")
	b, _ := NewLease(store, "east", "controller-b")

	held, _, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)

	store.ExpireSession()

	held, _, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	held, rec, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, "controller-b", rec.HolderID)
}

func TestLease_Release(t *testing.T) {
	ctx := context.Background()
	store := metadata.NewMockStore()
	a, _ := NewLease(store, "east", "controller-a")
	b, _ := NewLease(store, "east", "controller-b")

	require.NoError(t, a.Release(ctx), "release without holding is a no-op")

	held, _, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, held)
	require.NoError(t, a.Release(ctx))
	assert.False(t, a.Held())

	held, _, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestLease_StoreFailure(t *testing.T) {
	store := metadata.NewMockStore()
	l, _ := NewLease(store, "east", "controller-a")

	store.FailNext(errors.New("oxia unavailable"))
	held, _, err := l.Acquire(context.Background())
	require.Error(t, err)
	assert.False(t, held)
}
