package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/video-stream/annotator/internal/diarize"
	"github.com/video-stream/annotator/internal/job"
	"github.com/video-stream/annotator/internal/session"
)

var errNoQueue = errors.New("background jobs are not configured")

// UseQueue registers the stage handlers on q and enables the Start methods.
func (p *Pipeline) UseQueue(q *job.JobQueue) {
	p.jobs = q
	q.RegisterHandler(job.JobTranscription, p.runTranscriptionJob)
	q.RegisterHandler(job.JobDiarization, p.runDiarizationJob)
}

// StartTranscription reserves the session and queues transcription. The
// reservation is released when the job ends.
func (p *Pipeline) StartTranscription(s *session.Session, opts TranscribeOptions) (*job.Job, error) {
	if p.jobs == nil {
		return nil, errNoQueue
	}
	if s.State().VideoPath == "" {
		return nil, session.ErrNoActiveSession
	}
	return p.enqueue(s, session.StageTranscription, job.JobTranscription, p.withTranscribeDefaults(opts))
}

// StartSpeakerIdentification reserves the session and queues diarization.
func (p *Pipeline) StartSpeakerIdentification(s *session.Session, cfg diarize.Config) (*job.Job, error) {
	if p.jobs == nil {
		return nil, errNoQueue
	}
	if err := cfg.Validate(); err != nil {
		return nil, invalidArgument("%v", err)
	}
	if s.State().TranscriptPath == "" {
		return nil, ErrNoTranscript
	}
	return p.enqueue(s, session.StageDiarization, job.JobDiarization, cfg)
}

func (p *Pipeline) enqueue(s *session.Session, stage session.Stage, jobType job.JobType, params interface{}) (*job.Job, error) {
	if err := s.BeginStage(stage); err != nil {
		return nil, err
	}
	j, err := p.jobs.Enqueue(jobType, s.ID, params)
	if err != nil {
		s.EndStage()
		return nil, err
	}
	return j, nil
}

func (p *Pipeline) runTranscriptionJob(ctx context.Context, j *job.Job, updateProgress func(float64)) error {
	s, err := p.reservedSession(j)
	if err != nil {
		return err
	}
	defer s.EndStage()

	var opts TranscribeOptions
	if err := json.Unmarshal(j.Params, &opts); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	res, err := p.transcribe(ctx, s, opts, updateProgress)
	if err != nil {
		return err
	}
	return setResult(j, res)
}

func (p *Pipeline) runDiarizationJob(ctx context.Context, j *job.Job, updateProgress func(float64)) error {
	s, err := p.reservedSession(j)
	if err != nil {
		return err
	}
	defer s.EndStage()

	var cfg diarize.Config
	if err := json.Unmarshal(j.Params, &cfg); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	res, err := p.identifySpeakers(ctx, s, cfg)
	if err != nil {
		return err
	}
	return setResult(j, res)
}

// reservedSession finds the session a queued job was reserved on. Sessions
// stay in the manager for the life of the process, so this is the same value
// the reservation was taken on.
func (p *Pipeline) reservedSession(j *job.Job) (*session.Session, error) {
	s, err := p.sessions.Ensure(j.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", j.SessionID, err)
	}
	return s, nil
}

func setResult(j *job.Job, res *StageResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	j.Result = data
	return nil
}
