package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/video-stream/annotator/internal/db/models"
	"github.com/video-stream/annotator/internal/ffmpeg"
	"github.com/video-stream/annotator/internal/storage"
)

// Store persists session pointers so sessions outlive the process.
type Store interface {
	SaveSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
}

// Info describes a freshly loaded video.
type Info struct {
	SessionID   string            `json:"session_id"`
	VideoPath   string            `json:"filepath"`
	DisplayName string            `json:"filename"`
	VideoURL    string            `json:"video_url"`
	Media       *ffmpeg.MediaInfo `json:"media,omitempty"`
}

// Manager owns all sessions of the process, keyed by session id.
type Manager struct {
	mediaRoot string
	store     Store
	probe     func(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager resolving videos under mediaRoot. store may be nil.
func NewManager(mediaRoot string, store Store) *Manager {
	return &Manager{
		mediaRoot: mediaRoot,
		store:     store,
		probe:     ffmpeg.Probe,
		sessions:  make(map[string]*Session),
	}
}

func (m *Manager) MediaRoot() string {
	return m.mediaRoot
}

// Active returns the session with id if it has a video or results loaded.
func (m *Manager) Active(id string) (*Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoActiveSession
	}
	st := s.State()
	if st.VideoPath == "" && st.TranscriptPath == "" {
		return nil, ErrNoActiveSession
	}
	return s, nil
}

// Ensure returns the session with id, creating an empty one if needed.
func (m *Manager) Ensure(id string) (*Session, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s = newSession(id, State{})
	m.sessions[id] = s
	return s, nil
}

// LoadVideo points the session at a video under the media root, replacing
// every pointer the session had.
func (m *Manager) LoadVideo(ctx context.Context, id, fragment string) (*Info, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("%w: no video path provided", ErrNotFound)
	}

	videoPath, err := storage.Resolve(m.mediaRoot, fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fragment)
	}
	info, err := os.Stat(videoPath)
	if err != nil || info.IsDir() {
		log.Printf("[session] video file not found: %s", videoPath)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fragment)
	}

	s, err := m.Ensure(id)
	if err != nil {
		return nil, err
	}
	if err := s.BeginEdit(); err != nil {
		return nil, err
	}
	defer s.EndEdit()

	name := filepath.Base(videoPath)
	err = m.Commit(s, func(st *State) {
		*st = State{VideoPath: videoPath, DisplayName: name, Source: SourceNone}
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[session] %s loaded video %s", id, videoPath)

	result := &Info{
		SessionID:   id,
		VideoPath:   videoPath,
		DisplayName: name,
		VideoURL:    "/api/serve_video/" + url.PathEscape(name),
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if media, err := m.probe(probeCtx, videoPath); err == nil {
		result.Media = media
	}
	return result, nil
}

// Commit applies fn to a copy of the session state, persists the copy and
// only then makes it current. On error the session is unchanged.
func (m *Manager) Commit(s *Session, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	if next.Source == "" {
		next.Source = SourceNone
	}

	if m.store != nil {
		if err := m.store.SaveSession(toRecord(s.ID, next)); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	s.state = next
	return nil
}

func (m *Manager) lookup(id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("missing session id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	if m.store == nil {
		return nil, nil
	}

	rec, err := m.store.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	s := newSession(id, fromRecord(rec))
	m.sessions[id] = s
	log.Printf("[session] restored %s from store", id)
	return s, nil
}

func toRecord(id string, st State) *models.Session {
	return &models.Session{
		ID:             id,
		VideoPath:      st.VideoPath,
		DisplayName:    st.DisplayName,
		AudioPath:      st.AudioPath,
		TranscriptPath: st.TranscriptPath,
		LabeledPath:    st.LabeledPath,
		Source:         string(st.Source),
	}
}

func fromRecord(rec *models.Session) State {
	return State{
		VideoPath:      rec.VideoPath,
		DisplayName:    rec.DisplayName,
		AudioPath:      rec.AudioPath,
		TranscriptPath: rec.TranscriptPath,
		LabeledPath:    rec.LabeledPath,
		Source:         Source(rec.Source),
	}
}
