// Package labels converts between transcript documents and the flat labeled
// segment list used for dataset export and import.
package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/video-stream/annotator/internal/transcript"
)

// Entry is one exported segment. Unlabeled segments carry an empty Speaker.
type Entry struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// FormatError reports the first malformed element of an import. Index is -1
// when the input is not an array at all.
type FormatError struct {
	Index  int
	Reason string
}

func (e *FormatError) Error() string {
	if e.Index < 0 {
		return "invalid segments: " + e.Reason
	}
	return fmt.Sprintf("invalid segment at index %d: %s", e.Index, e.Reason)
}

var requiredKeys = []string{"speaker", "start", "end", "text"}

// FromDocument lists every segment of doc sorted by start time. Segments that
// share a start time keep their stored order.
func FromDocument(doc *transcript.Document) []Entry {
	entries := make([]Entry, 0, len(doc.Segments))
	for _, s := range doc.Segments {
		entries = append(entries, Entry{Speaker: s.Speaker, Start: s.Start, End: s.End, Text: s.Text})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
	return entries
}

// Parse validates raw as a labeled segment list and builds a document with
// sequential ids in input order. Nothing is returned unless every element is valid.
func Parse(raw []byte) (*transcript.Document, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, &FormatError{Index: -1, Reason: "expected a JSON array of segments"}
	}

	doc := &transcript.Document{Segments: make([]transcript.Segment, 0, len(items))}
	for i, item := range items {
		seg, reason := parseEntry(item)
		if reason != "" {
			return nil, &FormatError{Index: i, Reason: reason}
		}
		seg.ID = i
		doc.Segments = append(doc.Segments, seg)
	}
	return doc, nil
}

func parseEntry(item json.RawMessage) (transcript.Segment, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return transcript.Segment{}, "not an object"
	}
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return transcript.Segment{}, fmt.Sprintf("missing %q", key)
		}
	}

	var seg transcript.Segment
	var err error
	if seg.Speaker, err = stringField(fields["speaker"]); err != nil {
		return seg, "speaker: " + err.Error()
	}
	if seg.Text, err = stringField(fields["text"]); err != nil {
		return seg, "text: " + err.Error()
	}
	if seg.Start, err = floatField(fields["start"]); err != nil {
		return seg, "start: " + err.Error()
	}
	if seg.End, err = floatField(fields["end"]); err != nil {
		return seg, "end: " + err.Error()
	}
	if seg.End < seg.Start {
		return seg, fmt.Sprintf("end %g is before start %g", seg.End, seg.Start)
	}
	return seg, ""
}

func stringField(raw json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected a string")
	}
	return s, nil
}

// floatField accepts a JSON number or a string holding one.
func floatField(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected a number")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}
