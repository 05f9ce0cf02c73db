package retention

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLeader reports that another controller holds the lease.
	ErrNotLeader = errors.New("retention: lease held by another controller")

	// ErrInvalidHolderID is returned when creating a lease without a holder.
	ErrInvalidHolderID = errors.New("retention: invalid lease holder id")
)

// PurgeFailedError reports a purge that did not complete this tick. The
// next tick replans from scratch.
type PurgeFailedError struct {
	RecordingID   int64
	PurgePosition int64

	// Attempts is the number of PurgeSegments calls made, 1 or 2.
	Attempts int

	// ReplaySessionID is the replay the resolver tried to stop, if any.
	ReplaySessionID int64
	Conflict        bool

	Err error
}

func (e *PurgeFailedError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("retention: purge recording %d to %d failed after %d attempts (blocking replay %d): %v",
			e.RecordingID, e.PurgePosition, e.Attempts, e.ReplaySessionID, e.Err)
	}
	return fmt.Sprintf("retention: purge recording %d to %d failed: %v", e.RecordingID, e.PurgePosition, e.Err)
}

func (e *PurgeFailedError) Unwrap() error { return e.Err }
