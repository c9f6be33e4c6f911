package pipeline

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/diarize"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/transcript"
)

// IdentifySpeakers attributes each segment of the session's current document
// to a speaker and makes the labeled file authoritative.
func (p *Pipeline) IdentifySpeakers(ctx context.Context, s *session.Session, cfg diarize.Config) (*StageResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalidArgument("%v", err)
	}
	if err := s.BeginStage(session.StageDiarization); err != nil {
		return nil, err
	}
	defer s.EndStage()
	return p.identifySpeakers(ctx, s, cfg)
}

// identifySpeakers expects the caller to hold the diarization stage.
func (p *Pipeline) identifySpeakers(ctx context.Context, s *session.Session, cfg diarize.Config) (*StageResult, error) {
	st := s.State()
	if st.TranscriptPath == "" {
		return nil, ErrNoTranscript
	}
	audio := audioFor(st)
	if audio == "" {
		return nil, &StageError{Stage: session.StageDiarization, Err: errors.New("session has no audio or video to analyze")}
	}

	input := st.TranscriptPath
	if st.Labeled() && artifact.Exists(st.LabeledPath) {
		input = st.LabeledPath
	}

	key := st.VideoPath
	if key == "" {
		key = st.TranscriptPath
	}
	params := diarize.Params{AudioPath: audio, TranscriptPath: input, Config: cfg}

	fail := func(err error) (*StageResult, error) {
		log.Printf("[pipeline] speaker identification failed for session %s: %v", s.ID, err)
		return nil, &StageError{Stage: session.StageDiarization, Err: err}
	}

	proc, err := p.diarizers.Get(key, params)
	if err != nil {
		return fail(err)
	}
	log.Printf("[pipeline] identifying speakers for session %s (audio=%s input=%s)", s.ID, audio, input)
	doc, err := proc.Process(ctx)
	if err != nil {
		return fail(err)
	}
	if doc == nil {
		return fail(errors.New("engine returned no document"))
	}

	labeled := transcript.LabeledPath(st.TranscriptPath)
	if err := artifact.Write(labeled, doc); err != nil {
		return fail(err)
	}
	err = p.commit(s, func(st *session.State) {
		st.LabeledPath = labeled
		st.Source = session.SourceLabeled
	})
	if err != nil {
		return fail(err)
	}

	return &StageResult{
		Document:    doc,
		Segments:    len(doc.Segments),
		AudioPath:   audio,
		ResultsPath: labeled,
	}, nil
}

// audioFor returns the session's audio artifact, falling back to a .wav next
// to the video for sessions that never ran transcription in this process.
func audioFor(st session.State) string {
	if st.AudioPath != "" {
		return st.AudioPath
	}
	if st.VideoPath == "" {
		return ""
	}
	return strings.TrimSuffix(st.VideoPath, filepath.Ext(st.VideoPath)) + ".wav"
}
