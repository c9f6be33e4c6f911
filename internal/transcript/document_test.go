package transcript

import (
	"encoding/json"
	"strings"
	"testing"
)

const whisperJSON = `{
	"language": "en",
	"text": " Hi. Hello there.",
	"segments": [
		{"id": 1, "seek": 0, "start": 2.5, "end": 4.0, "text": " Hello there.", "tokens": [1, 2, 3], "avg_logprob": -0.2},
		{"id": 0, "seek": 0, "start": 0.0, "end": 2.0, "text": "Hi."}
	]
}`

func TestDocumentPreservesEngineFields(t *testing.T) {
	var doc Document
	if err := json.Unmarshal([]byte(whisperJSON), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(doc.Segments))
	}
	if doc.Segments[0].ID != 1 || doc.Segments[0].Start != 2.5 {
		t.Errorf("stored order not preserved: %+v", doc.Segments[0])
	}
	if _, ok := doc.Segments[0].Extra["tokens"]; !ok {
		t.Error("expected per-segment engine field tokens to be kept")
	}
	if _, ok := doc.Extra["language"]; !ok {
		t.Error("expected document metadata language to be kept")
	}

	out, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"avg_logprob":-0.2`) {
		t.Errorf("engine field lost on marshal: %s", out)
	}
	if strings.Contains(string(out), `"speaker"`) {
		t.Errorf("unlabeled segments should not gain a speaker key: %s", out)
	}
}

func TestDocumentRequiresSegments(t *testing.T) {
	cases := []string{`{}`, `{"segments": null}`, `[]`, `null`, `{"segments": [1]}`}
	for _, c := range cases {
		var doc Document
		if err := json.Unmarshal([]byte(c), &doc); err == nil {
			t.Errorf("expected error for %s", c)
		}
	}
}

func TestSegmentFloatID(t *testing.T) {
	var seg Segment
	if err := json.Unmarshal([]byte(`{"id": 3.0, "start": 1, "end": 2, "text": "x"}`), &seg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if seg.ID != 3 {
		t.Errorf("expected id 3, got %d", seg.ID)
	}
	if err := json.Unmarshal([]byte(`{"id": 3.5}`), &seg); err == nil {
		t.Error("expected error for fractional id")
	}
}

func TestValidate(t *testing.T) {
	doc := Document{Segments: []Segment{{ID: 0, Start: 0, End: 1}, {ID: 0, Start: 1, End: 2}}}
	if err := doc.Validate(); err == nil {
		t.Error("expected duplicate id error")
	}
	doc = Document{Segments: []Segment{{ID: 0, Start: 2, End: 1}}}
	if err := doc.Validate(); err == nil {
		t.Error("expected end-before-start error")
	}
	doc = Document{Segments: []Segment{{ID: 0, Start: 0, End: 0}, {ID: 1, Start: 0, End: 3}}}
	if err := doc.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLabeledPath(t *testing.T) {
	got := LabeledPath("/data/segments/segments-ab/whisper_results.json")
	want := "/data/segments/segments-ab/whisper_results_speaker_results.json"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if LabeledPath("") != "" {
		t.Error("empty transcript path should derive nothing")
	}
}

func TestLabelable(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{".", false},
		{"...", false},
		{"Hello.", true},
		{" ", true},
		{"?", true},
	}
	for _, tt := range tests {
		if got := Labelable(tt.text); got != tt.want {
			t.Errorf("Labelable(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
