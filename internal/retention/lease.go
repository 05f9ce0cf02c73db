package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starquake/horizon/internal/metadata"
	"github.com/starquake/horizon/internal/metadata/keys"
)

// LeaseRecord is the value stored under the lease key.
type LeaseRecord struct {
	ArchiveID    string `json:"archiveId"`
	HolderID     string `json:"holderId"`
	AcquiredAtMs int64  `json:"acquiredAtMs"`
}

// Lease ensures at most one controller purges a given archive. It is an
// ephemeral key, so a crashed holder's lease disappears with its metadata
// session and a standby takes over on its next tick.
type Lease struct {
	store     metadata.Store
	key       string
	archiveID string
	holderID  string
	now       func() time.Time

	held    bool
	version metadata.Version
}

// NewLease creates a lease on archiveID for holderID.
func NewLease(store metadata.Store, archiveID, holderID string) (*Lease, error) {
	key, err := keys.RetentionLeaseKeyPath(archiveID)
	if err != nil {
		return nil, err
	}
	if holderID == "" {
		return nil, ErrInvalidHolderID
	}
	return &Lease{
		store:     store,
		key:       key,
		archiveID: archiveID,
		holderID:  holderID,
		now:       time.Now,
	}, nil
}

// Key returns the metadata key backing the lease.
func (l *Lease) Key() string { return l.key }

// HolderID returns the identity this lease acquires as.
func (l *Lease) HolderID() string { return l.holderID }

// Held reports whether the last Acquire succeeded.
func (l *Lease) Held() bool { return l.held }

// Acquire takes the lease, or renews it if already held. When another
// controller holds it, Acquire returns false and that holder's record.
//
// New acquisitions write with expect-not-exists and renewals with the
// version last read, so two controllers can never both succeed.
func (l *Lease) Acquire(ctx context.Context) (bool, LeaseRecord, error) {
	res, err := l.store.Get(ctx, l.key)
	if err != nil {
		return false, LeaseRecord{}, fmt.Errorf("retention: read lease: %w", err)
	}

	record := LeaseRecord{
		ArchiveID:    l.archiveID,
		HolderID:     l.holderID,
		AcquiredAtMs: l.now().UnixMilli(),
	}
	var opt metadata.PutOption

	if res.Exists {
		var current LeaseRecord
		if err := json.Unmarshal(res.Value, &current); err != nil {
			return false, LeaseRecord{}, fmt.Errorf("retention: decode lease: %w", err)
		}
		if current.HolderID != l.holderID {
			l.held = false
			return false, current, nil
		}
		opt = metadata.WithExpectedVersion(res.Version)
	} else {
		opt = metadata.WithExpectNotExists()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return false, LeaseRecord{}, fmt.Errorf("retention: encode lease: %w", err)
	}
	version, err := l.store.PutEphemeral(ctx, l.key, data, opt)
	if err != nil {
		l.held = false
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return l.reread(ctx)
		}
		return false, LeaseRecord{}, fmt.Errorf("retention: write lease: %w", err)
	}

	l.held = true
	l.version = version
	return true, record, nil
}

// reread returns the holder that won a concurrent write.
func (l *Lease) reread(ctx context.Context) (bool, LeaseRecord, error) {
	res, err := l.store.Get(ctx, l.key)
	if err != nil {
		return false, LeaseRecord{}, fmt.Errorf("retention: read lease after conflict: %w", err)
	}
	if !res.Exists {
		return false, LeaseRecord{}, nil
	}
	var current LeaseRecord
	if err := json.Unmarshal(res.Value, &current); err != nil {
		return false, LeaseRecord{}, fmt.Errorf("retention: decode lease after conflict: %w", err)
	}
	return false, current, nil
}

// Release deletes the lease if this controller holds it. Losing the lease
// to another holder in the meantime is not an error.
func (l *Lease) Release(ctx context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	version := l.version
	err := l.store.Delete(ctx, l.key, &version)
	if err != nil && !errors.Is(err, metadata.ErrVersionMismatch) {
		return fmt.Errorf("retention: release lease: %w", err)
	}
	return nil
}
