package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/video-stream/annotator/internal/db"
	"github.com/video-stream/annotator/internal/db/models"
	"github.com/video-stream/annotator/internal/ffmpeg"
)

type failingStore struct{}

func (failingStore) SaveSession(*models.Session) error { return errors.New("disk full") }
func (failingStore) GetSession(string) (*models.Session, error) { return nil, nil }

func newTestManager(t *testing.T, store Store) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	m := NewManager(root, store)
	m.probe = func(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
		return nil, errors.New("no ffprobe in tests")
	}
	return m, root
}

func writeVideo(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("fake video"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadVideo(t *testing.T) {
	m, root := newTestManager(t, nil)
	writeVideo(t, root, "talks/My Talk.mp4")

	info, err := m.LoadVideo(context.Background(), "s1", "talks/My Talk.mp4")
	if err != nil {
		t.Fatalf("LoadVideo: %v", err)
	}
	if info.DisplayName != "My Talk.mp4" {
		t.Errorf("DisplayName = %q", info.DisplayName)
	}
	if info.VideoURL != "/api/serve_video/My%20Talk.mp4" {
		t.Errorf("VideoURL = %q", info.VideoURL)
	}

	s, err := m.Active("s1")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	st := s.State()
	if st.VideoPath != filepath.Join(root, "talks/My Talk.mp4") || st.Source != SourceNone {
		t.Errorf("unexpected state %+v", st)
	}
}

func TestLoadVideoReplacesPointers(t *testing.T) {
	m, root := newTestManager(t, nil)
	writeVideo(t, root, "a.mp4")
	writeVideo(t, root, "b.mp4")

	if _, err := m.LoadVideo(context.Background(), "s1", "a.mp4"); err != nil {
		t.Fatal(err)
	}
	s, _ := m.Active("s1")
	m.Commit(s, func(st *State) {
		st.TranscriptPath = "/data/segments/x/whisper_results.json"
		st.Source = SourceTranscript
	})

	if _, err := m.LoadVideo(context.Background(), "s1", "b.mp4"); err != nil {
		t.Fatal(err)
	}
	st := s.State()
	if st.TranscriptPath != "" || st.Source != SourceNone || st.DisplayName != "b.mp4" {
		t.Errorf("old pointers survived: %+v", st)
	}
}

func TestLoadVideoNotFound(t *testing.T) {
	m, root := newTestManager(t, nil)
	os.Mkdir(filepath.Join(root, "dir"), 0755)

	for _, frag := range []string{"", "missing.mp4", "dir", "../../etc/passwd"} {
		_, err := m.LoadVideo(context.Background(), "s1", frag)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("LoadVideo(%q) err = %v, want ErrNotFound", frag, err)
		}
	}
	if _, err := m.Active("s1"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("failed loads must not activate a session, got %v", err)
	}
}

func TestActiveWithoutSession(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, err := m.Active("nobody"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("got %v", err)
	}
	m.Ensure("nobody")
	if _, err := m.Active("nobody"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("empty session must not count as active, got %v", err)
	}
}

func TestCommitFailureLeavesStateUnchanged(t *testing.T) {
	m, _ := newTestManager(t, failingStore{})
	s, _ := m.Ensure("s1")
	err := m.Commit(s, func(st *State) { st.TranscriptPath = "/x.json" })
	if err == nil {
		t.Fatal("expected save error")
	}
	if s.State().TranscriptPath != "" {
		t.Error("state changed despite failed persist")
	}
}

func TestSessionsRestoreFromStore(t *testing.T) {
	database, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	m, root := newTestManager(t, database)
	writeVideo(t, root, "v.mp4")
	if _, err := m.LoadVideo(context.Background(), "s1", "v.mp4"); err != nil {
		t.Fatal(err)
	}
	s, _ := m.Active("s1")
	m.Commit(s, func(st *State) {
		st.TranscriptPath = "/d/whisper_results.json"
		st.LabeledPath = "/d/whisper_results_speaker_results.json"
		st.Source = SourceLabeled
	})

	fresh := NewManager(root, database)
	restored, err := fresh.Active("s1")
	if err != nil {
		t.Fatalf("Active after restart: %v", err)
	}
	st := restored.State()
	if !st.Labeled() || st.DisplayName != "v.mp4" {
		t.Errorf("unexpected restored state %+v", st)
	}
}

func TestLabeledRequiresDerivedPath(t *testing.T) {
	st := State{
		TranscriptPath: "/d/whisper_results.json",
		LabeledPath:    "/elsewhere/other.json",
		Source:         SourceLabeled,
	}
	if st.Labeled() {
		t.Error("labeled path not derived from transcript must not be authoritative")
	}
	st.LabeledPath = "/d/whisper_results_speaker_results.json"
	if !st.Labeled() {
		t.Error("expected labeled")
	}
}

func TestStageReservation(t *testing.T) {
	s := newSession("s1", State{})
	if err := s.BeginStage(StageTranscription); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginStage(StageDiarization); !errors.Is(err, ErrStageInProgress) {
		t.Errorf("second stage: %v", err)
	}
	if err := s.BeginEdit(); !errors.Is(err, ErrStageInProgress) {
		t.Errorf("edit during stage: %v", err)
	}
	if s.Stage() != StageTranscription {
		t.Errorf("Stage = %q", s.Stage())
	}

	done := make(chan struct{})
	go func() {
		s.EndStage()
		close(done)
	}()
	<-done

	if err := s.BeginEdit(); err != nil {
		t.Fatalf("edit after stage: %v", err)
	}
	s.EndEdit()
}

func TestEditsSerialize(t *testing.T) {
	s := newSession("s1", State{})
	if err := s.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	acquired := make(chan struct{})
	go func() {
		s.BeginEdit()
		close(acquired)
		s.EndEdit()
	}()

	select {
	case <-acquired:
		t.Fatal("second edit must wait for the first")
	case <-time.After(50 * time.Millisecond):
	}
	s.EndEdit()
	<-acquired
}

func TestWaitingEditFailsWhenStageStarts(t *testing.T) {
	s := newSession("s1", State{})
	if err := s.BeginEdit(); err != nil {
		t.Fatal(err)
	}

	result := make(chan error, 1)
	go func() {
		err := s.BeginEdit()
		if err == nil {
			s.EndEdit()
		}
		result <- err
	}()
	select {
	case err := <-result:
		t.Fatalf("second edit must wait for the first, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// The first edit ends and a stage takes the session before the waiting
	// edit gets to run.
	s.mu.Lock()
	s.editing = false
	s.mu.Unlock()
	if err := s.BeginStage(StageTranscription); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrStageInProgress) {
			t.Errorf("waiting edit = %v, want ErrStageInProgress", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting edit still blocked while the stage runs")
	}
	if s.Stage() != StageTranscription {
		t.Errorf("stage lost: %q", s.Stage())
	}
	s.EndStage()
}

func TestStageWaitsForNothing(t *testing.T) {
	s := newSession("s1", State{})
	if err := s.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	if err := s.BeginStage(StageDiarization); !errors.Is(err, ErrStageInProgress) {
		t.Errorf("stage during edit: %v", err)
	}
	s.EndEdit()
	if err := s.BeginStage(StageDiarization); err != nil {
		t.Errorf("stage after edit: %v", err)
	}
	s.EndStage()
}
