package retention

import "github.com/starquake/horizon/internal/archive"

// PurgePlan is the result of Plan. PurgePosition is archive.NullPosition
// when there is nothing to reclaim.
type PurgePlan struct {
	RecordingID       int64
	StartPosition     int64
	CurrentPosition   int64
	SegmentFileLength int64
	SegmentsRecorded  int64
	SegmentsToPurge   int64
	PurgePosition     int64
}

// IsNoop reports whether the plan reclaims nothing.
func (p PurgePlan) IsNoop() bool {
	return p.PurgePosition == archive.NullPosition
}

// Plan computes the new start position for desc. livePosition is the
// recording's append position, or archive.NullPosition to fall back to the
// stop position of a finished recording.
//
// Only whole segments are reclaimed. The newest whole segment is always
// kept, as is any partial segment after it, so a recording needs at least
// two whole segments before anything is purged.
func Plan(desc archive.RecordingDescriptor, livePosition int64) PurgePlan {
	plan := PurgePlan{
		RecordingID:       desc.RecordingID,
		StartPosition:     desc.StartPosition,
		CurrentPosition:   livePosition,
		SegmentFileLength: desc.SegmentFileLength,
		PurgePosition:     archive.NullPosition,
	}
	if plan.CurrentPosition == archive.NullPosition {
		plan.CurrentPosition = desc.StopPosition
	}
	if plan.CurrentPosition == archive.NullPosition || plan.SegmentFileLength <= 0 {
		return plan
	}

	recorded := plan.CurrentPosition - plan.StartPosition
	if recorded < 0 {
		return plan
	}
	plan.SegmentsRecorded = recorded / plan.SegmentFileLength
	plan.SegmentsToPurge = plan.SegmentsRecorded - 1
	if plan.SegmentsToPurge <= 0 {
		return plan
	}
	plan.PurgePosition = plan.StartPosition + plan.SegmentsToPurge*plan.SegmentFileLength
	return plan
}
