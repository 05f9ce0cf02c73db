package archive

import (
	"regexp"
	"strconv"
)

// The archive reports a purge blocked by a replay only through its
// diagnostic text, e.g.
//
//	"cannot purge recording 7 to 4000: active replay replaySessionId=99 at position 1024"
//
// ClassifyPurgeError is the single place that reads that text.
var replaySessionIDPattern = regexp.MustCompile(`replaySessionId\s*[=:]\s*(-?\d+)`)

// PurgeRejection is the typed form of a failed PurgeSegments call.
type PurgeRejection struct {
	// Blocked is true when an active replay session prevents the purge and
	// its ID could be read from the diagnostic.
	Blocked bool

	// ReplaySessionID is the blocking session. Valid only when Blocked.
	ReplaySessionID int64

	// Detail is the archive's diagnostic, or the error text for failures
	// that never reached the archive.
	Detail string
}

// ClassifyPurgeError turns a PurgeSegments failure into a PurgeRejection.
// Only ServiceErrors are inspected; transport failures are never treated as
// replay conflicts.
func ClassifyPurgeError(err error) PurgeRejection {
	if err == nil {
		return PurgeRejection{}
	}
	se, ok := AsServiceError(err)
	if !ok {
		return PurgeRejection{Detail: err.Error()}
	}

	m := replaySessionIDPattern.FindStringSubmatch(se.Message)
	if m == nil {
		return PurgeRejection{Detail: se.Message}
	}
	id, perr := strconv.ParseInt(m[1], 10, 64)
	if perr != nil || id < 0 {
		return PurgeRejection{Detail: se.Message}
	}
	return PurgeRejection{Blocked: true, ReplaySessionID: id, Detail: se.Message}
}

// ReplayConflictMessage renders the diagnostic the archive emits when a
// replay blocks a purge.
func ReplayConflictMessage(recordingID, newStartPosition, replaySessionID, replayPosition int64) string {
	return "cannot purge recording " + strconv.FormatInt(recordingID, 10) +
		" to " + strconv.FormatInt(newStartPosition, 10) +
		": active replay replaySessionId=" + strconv.FormatInt(replaySessionID, 10) +
		" at position " + strconv.FormatInt(replayPosition, 10)
}
