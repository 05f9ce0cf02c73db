package rpc

import "github.com/starquake/horizon/internal/archive"

const serviceName = "horizon.archive.v1.ArchiveControl"

// Method names on the ArchiveControl service.
const (
	methodListRecordings       = "ListRecordings"
	methodListRecordingsForURI = "ListRecordingsForUri"
	methodListRecording        = "ListRecording"
	methodRecordingPosition    = "RecordingPosition"
	methodPurgeSegments        = "PurgeSegments"
	methodStopReplay           = "StopReplay"
	methodStartReplay          = "StartReplay"
)

// Trailer keys describing an archive-side rejection.
const (
	trailerErrorCode = "archive-error-code"
	trailerErrorOp   = "archive-error-op"
)

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

type listRecordingsRequest struct {
	FromRecordingID int64  `json:"fromRecordingId"`
	RecordCount     int32  `json:"recordCount"`
	Channel         string `json:"channel,omitempty"`
	StreamID        int32  `json:"streamId,omitempty"`
}

type listRecordingsResponse struct {
	Recordings []archive.RecordingDescriptor `json:"recordings"`
}

type recordingRequest struct {
	RecordingID int64 `json:"recordingId"`
}

type recordingResponse struct {
	Recording archive.RecordingDescriptor `json:"recording"`
}

type positionResponse struct {
	Position int64 `json:"position"`
}

type purgeSegmentsRequest struct {
	RecordingID      int64 `json:"recordingId"`
	NewStartPosition int64 `json:"newStartPosition"`
}

type purgeSegmentsResponse struct {
	DeletedSegments int64 `json:"deletedSegments"`
}

type stopReplayRequest struct {
	ReplaySessionID int64 `json:"replaySessionId"`
}

type emptyResponse struct{}

type startReplayRequest struct {
	RecordingID    int64  `json:"recordingId"`
	Position       int64  `json:"position"`
	Length         int64  `json:"length"`
	ReplayChannel  string `json:"replayChannel"`
	ReplayStreamID int32  `json:"replayStreamId"`
}

type startReplayResponse struct {
	ReplaySessionID int64 `json:"replaySessionId"`
}
