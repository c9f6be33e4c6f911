package session

import (
	"errors"
	"sync"

	"github.com/video-stream/annotator/internal/transcript"
)

var (
	ErrNotFound        = errors.New("video file not found")
	ErrNoActiveSession = errors.New("no video loaded, please load a video first")
	ErrStageInProgress = errors.New("a processing stage is still running for this session")
)

// Source says which results file is authoritative for reads and edits.
type Source string

const (
	SourceNone       Source = "none"
	SourceTranscript Source = "transcript"
	SourceLabeled    Source = "labeled"
)

// Stage names a long-running pipeline step.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageDiarization   Stage = "diarization"
)

// State is the pointer set of a session. It is a value: callers get copies.
type State struct {
	VideoPath      string `json:"video_path,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	AudioPath      string `json:"audio_path,omitempty"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	LabeledPath    string `json:"labeled_path,omitempty"`
	Source         Source `json:"source"`
}

// Labeled reports whether the labeled file is the authoritative one. The
// labeled path must still be the one derived from the transcript path.
func (st State) Labeled() bool {
	return st.Source == SourceLabeled &&
		st.TranscriptPath != "" &&
		st.LabeledPath == transcript.LabeledPath(st.TranscriptPath)
}

// Session is one annotation session. Its State changes only through
// Manager.Commit. Mutating operations hold the edit slot; a running stage
// excludes edits for its whole duration, including edits already waiting.
type Session struct {
	ID string

	mu      sync.Mutex
	state   State
	stage   Stage
	editing bool
	idle    *sync.Cond
}

func newSession(id string, st State) *Session {
	if st.Source == "" {
		st.Source = SourceNone
	}
	s := &Session{ID: id, state: st}
	s.idle = sync.NewCond(&s.mu)
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stage returns the stage in flight, or "" when idle.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// BeginStage reserves the session for stage. It fails with ErrStageInProgress
// when another stage or an edit holds the session. EndStage may be called from
// a different goroutine than BeginStage.
func (s *Session) BeginStage(stage Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != "" || s.editing {
		return ErrStageInProgress
	}
	s.stage = stage
	// Waiting edits must observe the stage and give up.
	s.idle.Broadcast()
	return nil
}

func (s *Session) EndStage() {
	s.mu.Lock()
	s.stage = ""
	s.mu.Unlock()
	s.idle.Broadcast()
}

// BeginEdit takes the edit slot for a short mutation. Concurrent edits queue
// behind each other; any edit fails with ErrStageInProgress once a stage is
// running, even if it was already waiting.
func (s *Session) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.stage != "" {
			return ErrStageInProgress
		}
		if !s.editing {
			s.editing = true
			return nil
		}
		s.idle.Wait()
	}
}

func (s *Session) EndEdit() {
	s.mu.Lock()
	s.editing = false
	s.mu.Unlock()
	s.idle.Broadcast()
}
