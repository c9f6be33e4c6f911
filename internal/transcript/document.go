package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Segment is one time-bounded unit of transcript text with an optional speaker label.
// Fields the engines emit beyond the ones below (tokens, avg_logprob, ...) are kept
// in Extra so a segment nobody edited serializes back to the same bytes.
type Segment struct {
	ID      int
	Start   float64
	End     float64
	Text    string
	Speaker string
	Extra   map[string]json.RawMessage
}

// Document is a transcript result: ordered segments plus engine metadata.
// Stored order is whatever the engine produced; it is not necessarily sorted by start.
type Document struct {
	Segments []Segment
	Extra    map[string]json.RawMessage
}

var segmentKeys = map[string]bool{"id": true, "start": true, "end": true, "text": true, "speaker": true}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("segment is null")
	}

	*s = Segment{}
	if raw, ok := fields["id"]; ok {
		id, err := decodeID(raw)
		if err != nil {
			return fmt.Errorf("segment id: %w", err)
		}
		s.ID = id
	}
	if raw, ok := fields["start"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &s.Start); err != nil {
			return fmt.Errorf("segment start: %w", err)
		}
	}
	if raw, ok := fields["end"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &s.End); err != nil {
			return fmt.Errorf("segment end: %w", err)
		}
	}
	if raw, ok := fields["text"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &s.Text); err != nil {
			return fmt.Errorf("segment text: %w", err)
		}
	}
	if raw, ok := fields["speaker"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &s.Speaker); err != nil {
			return fmt.Errorf("segment speaker: %w", err)
		}
	}

	for k, v := range fields {
		if segmentKeys[k] {
			continue
		}
		if s.Extra == nil {
			s.Extra = make(map[string]json.RawMessage)
		}
		s.Extra[k] = v
	}
	return nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+5)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["id"] = s.ID
	out["start"] = s.Start
	out["end"] = s.End
	out["text"] = s.Text
	if s.Speaker != "" {
		out["speaker"] = s.Speaker
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("document is null")
	}

	raw, ok := fields["segments"]
	if !ok || isNull(raw) {
		return fmt.Errorf("document has no segments")
	}

	*d = Document{}
	if err := json.Unmarshal(raw, &d.Segments); err != nil {
		return fmt.Errorf("segments: %w", err)
	}
	if d.Segments == nil {
		d.Segments = []Segment{}
	}

	for k, v := range fields {
		if k == "segments" {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	segments := d.Segments
	if segments == nil {
		segments = []Segment{}
	}
	out["segments"] = segments
	return json.Marshal(out)
}

// Validate checks the document invariants: unique segment ids and end >= start.
func (d *Document) Validate() error {
	seen := make(map[int]bool, len(d.Segments))
	for i, seg := range d.Segments {
		if seen[seg.ID] {
			return fmt.Errorf("segment %d: duplicate id %d", i, seg.ID)
		}
		seen[seg.ID] = true
		if seg.End < seg.Start {
			return fmt.Errorf("segment %d: end %.3f before start %.3f", i, seg.End, seg.Start)
		}
	}
	return nil
}

// Find returns the index of the first segment with the given id, or -1.
func (d *Document) Find(id int) int {
	for i := range d.Segments {
		if d.Segments[i].ID == id {
			return i
		}
	}
	return -1
}

func decodeID(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer id %v", f)
	}
	return int(f), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
