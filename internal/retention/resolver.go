package retention

import (
	"context"
	"errors"
	"time"

	"github.com/starquake/horizon/internal/archive"
	"github.com/starquake/horizon/internal/logging"
)

// Purge attempt results passed to Recorder.RecordPurgeAttempt.
const (
	purgeResultOK       = "ok"
	purgeResultConflict = "conflict"
	purgeResultError    = "error"
)

// PurgeOutcome describes a completed purge.
type PurgeOutcome struct {
	// Attempts is the number of PurgeSegments calls made, 1 or 2.
	Attempts        int
	DeletedSegments int64

	// StoppedReplay is true when the first attempt was blocked by a replay
	// and the retry succeeded.
	StoppedReplay   bool
	ReplaySessionID int64
}

// Resolver purges segments and clears a single blocking replay session
// when the archive rejects the purge because of one.
type Resolver struct {
	client     archive.Client
	rpcTimeout time.Duration
	grace      time.Duration
	sleep      func(context.Context, time.Duration) error
	metrics    Recorder
}

// NewResolver creates a Resolver. grace is how long to wait after stopping
// a replay before retrying the purge, giving the archive time to tear the
// session down.
func NewResolver(client archive.Client, rpcTimeout, grace time.Duration) *Resolver {
	return &Resolver{
		client:     client,
		rpcTimeout: rpcTimeout,
		grace:      grace,
		sleep:      sleepCtx,
	}
}

// WithMetrics sets the recorder for purge attempts and stopped replays.
func (r *Resolver) WithMetrics(m Recorder) *Resolver {
	r.metrics = m
	return r
}

// Purge deletes the segments of recordingID below purgePosition.
//
// When the archive reports a replay session blocking the purge, that
// session is stopped and the purge retried exactly once. Every other
// failure, and a failed retry, is returned as a *PurgeFailedError.
func (r *Resolver) Purge(ctx context.Context, recordingID, purgePosition int64) (PurgeOutcome, error) {
	logger := logging.FromCtx(ctx)

	deleted, err := r.purge(ctx, recordingID, purgePosition)
	if err == nil {
		r.recordAttempt(purgeResultOK)
		return PurgeOutcome{Attempts: 1, DeletedSegments: deleted}, nil
	}

	rejection := archive.ClassifyPurgeError(err)
	if !rejection.Blocked {
		r.recordAttempt(purgeResultError)
		return PurgeOutcome{Attempts: 1}, &PurgeFailedError{
			RecordingID:   recordingID,
			PurgePosition: purgePosition,
			Attempts:      1,
			Err:           err,
		}
	}
	r.recordAttempt(purgeResultConflict)

	replayID := rejection.ReplaySessionID
	failed := func(attempts int, cause error) (PurgeOutcome, error) {
		return PurgeOutcome{Attempts: attempts, ReplaySessionID: replayID}, &PurgeFailedError{
			RecordingID:     recordingID,
			PurgePosition:   purgePosition,
			Attempts:        attempts,
			ReplaySessionID: replayID,
			Conflict:        true,
			Err:             cause,
		}
	}

	logger.Warnf("purge blocked by replay, stopping it", map[string]any{
		"recordingId":     recordingID,
		"purgePosition":   purgePosition,
		"replaySessionId": replayID,
		"detail":          rejection.Detail,
	})

	if err := r.stopReplay(ctx, replayID); err != nil {
		// A replay that finished on its own no longer blocks anything.
		if !errors.Is(err, archive.ErrReplayNotFound) {
			return failed(1, err)
		}
		logger.Debugf("blocking replay already gone", map[string]any{"replaySessionId": replayID})
	} else if r.metrics != nil {
		r.metrics.RecordReplayStopped()
	}

	if r.grace > 0 {
		if err := r.sleep(ctx, r.grace); err != nil {
			return failed(1, err)
		}
	}

	deleted, err = r.purge(ctx, recordingID, purgePosition)
	if err != nil {
		if archive.ClassifyPurgeError(err).Blocked {
			r.recordAttempt(purgeResultConflict)
		} else {
			r.recordAttempt(purgeResultError)
		}
		return failed(2, err)
	}
	r.recordAttempt(purgeResultOK)
	return PurgeOutcome{
		Attempts:        2,
		DeletedSegments: deleted,
		StoppedReplay:   true,
		ReplaySessionID: replayID,
	}, nil
}

func (r *Resolver) purge(ctx context.Context, recordingID, purgePosition int64) (int64, error) {
	callCtx, cancel := withRPCTimeout(ctx, r.rpcTimeout)
	defer cancel()
	return r.client.PurgeSegments(callCtx, recordingID, purgePosition)
}

func (r *Resolver) stopReplay(ctx context.Context, replaySessionID int64) error {
	callCtx, cancel := withRPCTimeout(ctx, r.rpcTimeout)
	defer cancel()
	return r.client.StopReplay(callCtx, replaySessionID)
}

func (r *Resolver) recordAttempt(result string) {
	if r.metrics != nil {
		r.metrics.RecordPurgeAttempt(result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
