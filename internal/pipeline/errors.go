package pipeline

import (
	"errors"
	"fmt"

	"github.com/video-stream/annotator/internal/session"
)

var (
	ErrNoTranscript    = errors.New("no transcript available, please run transcription first")
	ErrNoResults       = errors.New("no results available, please run transcription or upload segments first")
	ErrNoSegments      = errors.New("no segments available to export")
	ErrInvalidArgument = errors.New("invalid argument")
)

// StageError is a collaborator failure during transcription or diarization.
// The session keeps the pointers it had before the stage started.
type StageError struct {
	Stage session.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
