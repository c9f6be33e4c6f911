// Package pipeline orders the annotation stages of a session: transcription,
// speaker identification, per-segment edits and dataset export/import. Every
// operation takes the session it acts on; nothing here looks at requests.
package pipeline

import (
	"encoding/hex"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/video-stream/annotator/internal/diarize"
	"github.com/video-stream/annotator/internal/events"
	"github.com/video-stream/annotator/internal/job"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/whisper"
)

// Settings supplies runtime overrides for stage defaults.
type Settings interface {
	GetSetting(key, defaultVal string) string
}

// Publisher receives session change notifications.
type Publisher interface {
	Publish(ev events.Event)
}

// Options are the process-level defaults of the pipeline.
type Options struct {
	DataPath string
	Engine   string
	Language string
	Model    string
	Diarize  diarize.Config
}

type Pipeline struct {
	sessions  *session.Manager
	asr       whisper.Transcriber
	diarizers *diarize.Cache
	settings  Settings
	opts      Options

	jobs   *job.JobQueue
	events Publisher
	now    func() time.Time
}

// New creates a pipeline. settings may be nil.
func New(sessions *session.Manager, asr whisper.Transcriber, diarizers *diarize.Cache, settings Settings, opts Options) *Pipeline {
	return &Pipeline{
		sessions:  sessions,
		asr:       asr,
		diarizers: diarizers,
		settings:  settings,
		opts:      opts,
		now:       time.Now,
	}
}

func (p *Pipeline) Sessions() *session.Manager {
	return p.sessions
}

// SetPublisher makes the pipeline announce session pointer changes.
func (p *Pipeline) SetPublisher(pub Publisher) {
	p.events = pub
}

// TranscribeDefaults returns the transcription options used when a request
// leaves a field empty.
func (p *Pipeline) TranscribeDefaults() TranscribeOptions {
	return TranscribeOptions{
		Engine:   p.opts.Engine,
		Language: p.setting("whisper_language", p.opts.Language),
		Model:    p.setting("whisper_model", p.opts.Model),
	}
}

// DiarizeDefaults returns the speaker identification tuning, with settings
// overriding the configured values. Unparseable settings are ignored.
func (p *Pipeline) DiarizeDefaults() diarize.Config {
	cfg := p.opts.Diarize
	if v, err := strconv.ParseBool(p.setting("diarize_denoise", "")); err == nil {
		cfg.Denoise = v
	}
	if v, err := strconv.ParseFloat(p.setting("diarize_denoise_prop", ""), 64); err == nil {
		cfg.DenoiseProportion = v
	}
	if v, err := strconv.ParseFloat(p.setting("diarize_threshold", ""), 64); err == nil {
		cfg.VerificationThreshold = v
	}
	return cfg
}

func (p *Pipeline) setting(key, fallback string) string {
	if p.settings == nil {
		return fallback
	}
	if v := p.settings.GetSetting(key, ""); v != "" {
		return v
	}
	return fallback
}

func (p *Pipeline) segmentsDir() string {
	return filepath.Join(p.opts.DataPath, "segments")
}

// commit applies fn to the session state and announces the new pointers.
func (p *Pipeline) commit(s *session.Session, fn func(*session.State)) error {
	if err := p.sessions.Commit(s, fn); err != nil {
		return err
	}
	if p.events != nil {
		st := s.State()
		p.events.Publish(events.Event{
			Type:      events.TypeSession,
			SessionID: s.ID,
			Data:      st,
		})
	}
	return nil
}

// videoHash discriminates working directories of different videos.
func videoHash(videoPath string) string {
	sum := blake2b.Sum256([]byte(videoPath))
	return hex.EncodeToString(sum[:6])
}

func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

func logNoop(s *session.Session, op string, id int) {
	log.Printf("[pipeline] %s: session %s has no segment %d, nothing changed", op, s.ID, id)
}
