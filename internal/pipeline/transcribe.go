package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/transcript"
	"github.com/video-stream/annotator/internal/whisper"
)

// TranscribeOptions select the ASR engine and its tuning. Empty fields fall
// back to TranscribeDefaults.
type TranscribeOptions struct {
	Engine   string `json:"engine,omitempty"`
	Language string `json:"language,omitempty"`
	Model    string `json:"model,omitempty"`
}

// StageResult is what a finished stage produced.
type StageResult struct {
	Document    *transcript.Document `json:"-"`
	Segments    int                  `json:"segments"`
	AudioPath   string               `json:"audio_path"`
	ResultsPath string               `json:"results_path"`
	Language    string               `json:"language,omitempty"`
}

// Transcribe runs speech-to-text on the session's video and makes the fresh
// transcript the authoritative document, dropping any previous labels.
func (p *Pipeline) Transcribe(ctx context.Context, s *session.Session, opts TranscribeOptions, progress func(float64)) (*StageResult, error) {
	if err := s.BeginStage(session.StageTranscription); err != nil {
		return nil, err
	}
	defer s.EndStage()
	return p.transcribe(ctx, s, opts, progress)
}

// transcribe expects the caller to hold the transcription stage.
func (p *Pipeline) transcribe(ctx context.Context, s *session.Session, opts TranscribeOptions, progress func(float64)) (*StageResult, error) {
	st := s.State()
	if st.VideoPath == "" {
		return nil, session.ErrNoActiveSession
	}
	if progress == nil {
		progress = func(float64) {}
	}
	opts = p.withTranscribeDefaults(opts)

	dir := filepath.Join(p.segmentsDir(), fmt.Sprintf("segments-%s-%s", videoHash(st.VideoPath), uniqueSuffix()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &StageError{Stage: session.StageTranscription, Err: fmt.Errorf("create working dir: %w", err)}
	}
	fail := func(err error) (*StageResult, error) {
		os.RemoveAll(dir)
		log.Printf("[pipeline] transcription failed for session %s: %v", s.ID, err)
		return nil, &StageError{Stage: session.StageTranscription, Err: err}
	}

	log.Printf("[pipeline] transcribing %s into %s", st.VideoPath, dir)
	res, err := p.asr.Transcribe(ctx, whisper.TranscribeRequest{
		FilePath:  st.VideoPath,
		OutputDir: dir,
		Engine:    opts.Engine,
		Language:  opts.Language,
		Model:     opts.Model,
	}, progress)
	if err != nil {
		return fail(err)
	}
	if res == nil || res.Document == nil {
		return fail(errors.New("engine returned no document"))
	}

	resultsPath := filepath.Join(dir, transcript.ResultsFileName)
	if err := artifact.Write(resultsPath, res.Document); err != nil {
		return fail(err)
	}

	err = p.commit(s, func(st *session.State) {
		st.TranscriptPath = resultsPath
		st.AudioPath = res.AudioPath
		st.LabeledPath = ""
		st.Source = session.SourceTranscript
	})
	if err != nil {
		return fail(err)
	}
	progress(1.0)

	log.Printf("[pipeline] session %s transcribed: %d segments", s.ID, len(res.Document.Segments))
	return &StageResult{
		Document:    res.Document,
		Segments:    len(res.Document.Segments),
		AudioPath:   res.AudioPath,
		ResultsPath: resultsPath,
		Language:    res.Language,
	}, nil
}

func (p *Pipeline) withTranscribeDefaults(opts TranscribeOptions) TranscribeOptions {
	def := p.TranscribeDefaults()
	if opts.Engine == "" {
		opts.Engine = def.Engine
	}
	if opts.Language == "" {
		opts.Language = def.Language
	}
	if opts.Model == "" {
		opts.Model = def.Model
	}
	return opts
}
