package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/video-stream/annotator/internal/transcript"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "whisper_results.json")
	doc := &transcript.Document{Segments: []transcript.Segment{
		{ID: 0, Start: 0, End: 2, Text: "Hi."},
		{ID: 1, Start: 2, End: 3.5, Text: "Bye.", Speaker: "A"},
	}}

	if err := Write(path, doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !Exists(path) {
		t.Fatal("expected file to exist after Write")
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Segments) != 2 || got.Segments[1].Speaker != "A" || got.Segments[0].Text != "Hi." {
		t.Errorf("unexpected document: %+v", got.Segments)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the results file, found %d entries", len(entries))
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whisper_results.json")
	os.WriteFile(path, []byte(`{"segments": [{"id": 0, "start": 0,`), 0644)
	if _, err := Read(path); err == nil {
		t.Error("expected parse error for truncated file")
	}
}

func TestWriteRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whisper_results.json")
	doc := &transcript.Document{Segments: []transcript.Segment{{ID: 1}, {ID: 1}}}
	if err := Write(path, doc); err == nil {
		t.Fatal("expected validation error")
	}
	if Exists(path) {
		t.Error("invalid document must not be written")
	}
}

func TestWriteKeepsOldContentOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whisper_results.json")
	good := &transcript.Document{Segments: []transcript.Segment{{ID: 0, Start: 0, End: 1, Text: "a"}}}
	if err := Write(path, good); err != nil {
		t.Fatalf("Write: %v", err)
	}
	bad := &transcript.Document{Segments: []transcript.Segment{{ID: 0, Start: 5, End: 1}}}
	if err := Write(path, bad); err == nil {
		t.Fatal("expected error")
	}
	got, err := Read(path)
	if err != nil || got.Segments[0].Text != "a" {
		t.Errorf("previous content should survive, got %+v, %v", got, err)
	}
}
