package archive

import (
	"errors"
	"fmt"
)

// Code classifies an error reported by the archive.
type Code int32

const (
	CodeGeneric Code = iota
	CodeUnknownRecording
	CodeUnknownReplay
	CodeActiveRecording
	CodeInvalidPosition
)

func (c Code) String() string {
	switch c {
	case CodeGeneric:
		return "generic"
	case CodeUnknownRecording:
		return "unknown_recording"
	case CodeUnknownReplay:
		return "unknown_replay"
	case CodeActiveRecording:
		return "active_recording"
	case CodeInvalidPosition:
		return "invalid_position"
	default:
		return fmt.Sprintf("code(%d)", int32(c))
	}
}

var (
	// ErrRecordingNotFound matches ServiceErrors with CodeUnknownRecording.
	ErrRecordingNotFound = errors.New("archive: recording not found")

	// ErrReplayNotFound matches ServiceErrors with CodeUnknownReplay.
	ErrReplayNotFound = errors.New("archive: replay session not found")
)

// ServiceError is a request the archive received and rejected. Transport
// failures are never ServiceErrors.
type ServiceError struct {
	Op      string
	Code    Code
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("archive: %s rejected (%s): %s", e.Op, e.Code, e.Message)
}

// Is lets errors.Is match the sentinel for the error's code.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrRecordingNotFound:
		return e.Code == CodeUnknownRecording
	case ErrReplayNotFound:
		return e.Code == CodeUnknownReplay
	}
	return false
}

// AsServiceError returns the ServiceError in err's chain, if any.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
