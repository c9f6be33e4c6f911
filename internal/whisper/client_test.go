package whisper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const verboseJSON = `{
	"task": "transcribe",
	"language": "english",
	"duration": 2.0,
	"text": "Hi.",
	"segments": [{"id": 0, "seek": 0, "start": 0.0, "end": 2.0, "text": "Hi.", "tokens": [50364, 2421]}]
}`

// fakeExtract writes a placeholder audio file instead of running ffmpeg.
func fakeExtract(ctx context.Context, mediaPath, outDir string) (string, error) {
	os.MkdirAll(outDir, 0755)
	out := filepath.Join(outDir, "audio.wav")
	return out, os.WriteFile(out, []byte("fake-audio-data"), 0644)
}

func noProgress(float64) {}

func TestWhisperCppTranscribe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("expected /inference, got %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart content-type, got %s", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("expected verbose_json, got %q", got)
		}
		if got := r.FormValue("language"); got != "" {
			t.Errorf("auto language should not be sent, got %q", got)
		}
		w.Write([]byte(verboseJSON))
	}))
	defer ts.Close()

	c := NewWhisperCppClient(ts.URL + "/")
	c.extract = fakeExtract

	outDir := t.TempDir()
	var last float64
	res, err := c.Transcribe(context.Background(), TranscribeRequest{
		FilePath:  "/media/talk.mp4",
		OutputDir: outDir,
		Language:  "auto",
	}, func(p float64) { last = p })
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.AudioPath != filepath.Join(outDir, "audio.wav") {
		t.Errorf("unexpected audio path %q", res.AudioPath)
	}
	if res.Language != "english" {
		t.Errorf("expected detected language, got %q", res.Language)
	}
	if len(res.Document.Segments) != 1 || res.Document.Segments[0].Text != "Hi." {
		t.Errorf("unexpected document %+v", res.Document.Segments)
	}
	if last < 0.9 {
		t.Errorf("expected progress near completion, got %v", last)
	}
}

func TestWhisperCppServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewWhisperCppClient(ts.URL)
	c.extract = fakeExtract

	_, err := c.Transcribe(context.Background(), TranscribeRequest{FilePath: "x.mp4", OutputDir: t.TempDir()}, noProgress)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestWhisperCppExtractFailure(t *testing.T) {
	c := NewWhisperCppClient("http://127.0.0.1:1")
	c.extract = func(ctx context.Context, mediaPath, outDir string) (string, error) {
		return "", errors.New("no audio stream")
	}
	_, err := c.Transcribe(context.Background(), TranscribeRequest{FilePath: "x.mp4", OutputDir: t.TempDir()}, noProgress)
	if err == nil || !strings.Contains(err.Error(), "extract audio") {
		t.Errorf("expected extract error, got %v", err)
	}
}

func TestOpenAITranscribe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		r.ParseMultipartForm(10 << 20)
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected default model, got %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("expected language en, got %q", got)
		}
		w.Write([]byte(verboseJSON))
	}))
	defer ts.Close()

	c := NewOpenAIWhisperClient("sk-test")
	c.url = ts.URL
	c.extract = fakeExtract

	res, err := c.Transcribe(context.Background(), TranscribeRequest{FilePath: "x.mp4", OutputDir: t.TempDir(), Language: "en"}, noProgress)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.AudioPath == "" || len(res.Document.Segments) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	c := NewOpenAIWhisperClient("")
	if _, err := c.Transcribe(context.Background(), TranscribeRequest{}, noProgress); err == nil {
		t.Error("expected error without API key")
	}
}

func newTestOpenVINO(url string) *OpenVINOClient {
	c := NewOpenVINOClient(url)
	c.extract = fakeExtract
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func TestOpenVINORetriesTransientErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(verboseJSON))
	}))
	defer ts.Close()

	res, err := newTestOpenVINO(ts.URL+"/").Transcribe(context.Background(), TranscribeRequest{FilePath: "x.mp4", OutputDir: t.TempDir()}, noProgress)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 || len(res.Document.Segments) != 1 || res.Language != "english" {
		t.Errorf("calls=%d result=%+v", n, res)
	}
}

func TestOpenVINOOutOfMemoryIsFinal(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "GPU out of memory", http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestOpenVINO(ts.URL).Transcribe(context.Background(), TranscribeRequest{FilePath: "x.mp4", OutputDir: t.TempDir()}, noProgress)
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("expected out of memory error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("out of memory should not be retried, calls=%d", n)
	}
}
