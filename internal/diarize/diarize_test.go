package diarize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/transcript"
)

type stubProcessor struct{ id int }

func (s *stubProcessor) Process(ctx context.Context) (*transcript.Document, error) {
	return &transcript.Document{}, nil
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	bad := []Config{
		{DenoiseProportion: -0.1},
		{DenoiseProportion: 1.1},
		{VerificationThreshold: 2},
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
	edge := Config{DenoiseProportion: 1, VerificationThreshold: 0}
	if err := edge.Validate(); err != nil {
		t.Errorf("bounds are inclusive: %v", err)
	}
}

func TestCacheInsertIfAbsent(t *testing.T) {
	builds := 0
	c := NewCache(func(p Params) (Processor, error) {
		builds++
		return &stubProcessor{id: builds}, nil
	})
	params := Params{AudioPath: "/a.wav", TranscriptPath: "/t.json", Config: DefaultConfig()}

	first, err := c.Get("/media/talk.mp4", params)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Get("/media/talk.mp4", params)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || builds != 1 {
		t.Errorf("expected reuse, builds=%d", builds)
	}

	changed := params
	changed.Config.VerificationThreshold = 0.5
	if _, err := c.Get("/media/talk.mp4", changed); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("/media/other.mp4", params); err != nil {
		t.Fatal(err)
	}
	if builds != 3 || c.Len() != 3 {
		t.Errorf("expected 3 contexts, builds=%d len=%d", builds, c.Len())
	}
}

func TestCacheBuildFailureInsertsNothing(t *testing.T) {
	fail := true
	c := NewCache(func(p Params) (Processor, error) {
		if fail {
			return nil, errors.New("model missing")
		}
		return &stubProcessor{}, nil
	})
	if _, err := c.Get("/v.mp4", Params{}); err == nil {
		t.Fatal("expected build error")
	}
	if c.Len() != 0 {
		t.Errorf("failed build must not be cached")
	}
	fail = false
	if _, err := c.Get("/v.mp4", Params{}); err != nil {
		t.Fatal(err)
	}
}

func TestCacheConcurrentGet(t *testing.T) {
	c := NewCache(func(p Params) (Processor, error) { return &stubProcessor{}, nil })
	var wg sync.WaitGroup
	results := make([]Processor, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get("/v.mp4", Params{})
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		if r != results[0] {
			t.Fatal("all callers should end up with the same processor")
		}
	}
}

func TestServiceProcessor(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req identifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.AudioPath != "/a.wav" || !req.Denoise || req.DenoiseProportion != 0.3 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"segments": [{"id": 0, "start": 0, "end": 1, "text": "Hi.", "speaker": "SPEAKER_00"}]}`))
	}))
	defer ts.Close()

	factory := NewServiceFactory(ts.URL + "/")
	p, err := factory(Params{AudioPath: "/a.wav", TranscriptPath: "/t.json", Config: Config{Denoise: true, DenoiseProportion: 0.3, VerificationThreshold: 0.2}})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if doc.Segments[0].Speaker != "SPEAKER_00" {
		t.Errorf("unexpected speaker %q", doc.Segments[0].Speaker)
	}
}

func TestServiceProcessorError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "embedding model crashed", http.StatusInternalServerError)
	}))
	defer ts.Close()

	p, _ := NewServiceFactory(ts.URL)(Params{AudioPath: "/a.wav", TranscriptPath: "/t.json"})
	_, err := p.Process(context.Background())
	if err == nil || !strings.Contains(err.Error(), "embedding model crashed") {
		t.Errorf("expected service error detail, got %v", err)
	}
}

func TestCommandArgs(t *testing.T) {
	argv := commandArgs([]string{"python3", "speaker_id.py"}, Params{
		AudioPath:      "/a.wav",
		TranscriptPath: "/t.json",
		Config:         Config{Denoise: true, DenoiseProportion: 0.1, VerificationThreshold: 0.25},
	})
	got := strings.Join(argv, " ")
	want := "python3 speaker_id.py --audio /a.wav --transcript /t.json --denoise-prop 0.1 --threshold 0.25 --denoise"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestCommandFactoryMissingProgram(t *testing.T) {
	if _, err := NewCommandFactory(nil)(Params{}); err == nil {
		t.Error("expected error for empty command")
	}
	if _, err := NewCommandFactory([]string{"definitely-not-a-real-binary-xyz"})(Params{}); err == nil {
		t.Error("expected lookup error")
	}
}

func TestGapProcessor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whisper_results.json")
	doc := &transcript.Document{Segments: []transcript.Segment{
		{ID: 2, Start: 5.0, End: 6.0, Text: "c"},
		{ID: 0, Start: 0.0, End: 1.0, Text: "a"},
		{ID: 1, Start: 1.2, End: 2.0, Text: "b"},
	}}
	if err := artifact.Write(path, doc); err != nil {
		t.Fatal(err)
	}

	p, err := NewGapFactory()(Params{TranscriptPath: path})
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Segments[0].ID != 2 {
		t.Fatal("stored order must be kept")
	}
	speakers := map[int]string{}
	for _, s := range got.Segments {
		speakers[s.ID] = s.Speaker
	}
	if speakers[0] != "Speaker 1" || speakers[1] != "Speaker 1" || speakers[2] != "Speaker 2" {
		t.Errorf("unexpected speakers %v", speakers)
	}
}

func TestGapKeepsExistingLabels(t *testing.T) {
	doc := &transcript.Document{Segments: []transcript.Segment{
		{ID: 0, Start: 0, End: 1, Speaker: "Alice"},
		{ID: 1, Start: 1.2, End: 2},
		{ID: 2, Start: 9, End: 10},
	}}
	assignByGaps(doc)
	got := []string{doc.Segments[0].Speaker, doc.Segments[1].Speaker, doc.Segments[2].Speaker}
	want := []string{"Alice", "Speaker 1", "Speaker 2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d speaker = %q, want %q", i, got[i], want[i])
		}
	}
}
