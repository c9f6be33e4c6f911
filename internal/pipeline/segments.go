package pipeline

import (
	"log"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/transcript"
)

// CurrentDocument reads the session's authoritative document: the labeled
// file when it is the current source, otherwise the transcript. A file that
// cannot be read or parsed counts as absent.
func (p *Pipeline) CurrentDocument(s *session.Session) (*transcript.Document, error) {
	return currentDocument(s.ID, s.State())
}

func currentDocument(id string, st session.State) (*transcript.Document, error) {
	if st.Labeled() {
		doc, err := artifact.Read(st.LabeledPath)
		if err == nil {
			return doc, nil
		}
		log.Printf("[pipeline] session %s: labeled results unreadable, using transcript: %v", id, err)
	}
	if st.TranscriptPath != "" {
		doc, err := artifact.Read(st.TranscriptPath)
		if err == nil {
			return doc, nil
		}
		log.Printf("[pipeline] session %s: transcript unreadable: %v", id, err)
	}
	return nil, ErrNoResults
}

// Segments lists the segments worth labeling in stored order.
func (p *Pipeline) Segments(s *session.Session) ([]transcript.Segment, error) {
	doc, err := p.CurrentDocument(s)
	if err != nil {
		return nil, err
	}
	out := make([]transcript.Segment, 0, len(doc.Segments))
	for _, seg := range doc.Segments {
		if transcript.Labelable(seg.Text) {
			out = append(out, seg)
		}
	}
	return out, nil
}

// SegmentView is the client-facing shape of a segment. Speaker is always
// present, empty when unlabeled; engine extras are left out.
type SegmentView struct {
	ID      int     `json:"id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// SegmentViews lists Segments in their client-facing shape.
func (p *Pipeline) SegmentViews(s *session.Session) ([]SegmentView, error) {
	segs, err := p.Segments(s)
	if err != nil {
		return nil, err
	}
	out := make([]SegmentView, 0, len(segs))
	for _, seg := range segs {
		out = append(out, SegmentView{ID: seg.ID, Start: seg.Start, End: seg.End, Text: seg.Text, Speaker: seg.Speaker})
	}
	return out, nil
}

// SetSpeaker labels the first segment with id. An unknown id changes nothing.
func (p *Pipeline) SetSpeaker(s *session.Session, id int, speaker string) error {
	if speaker == "" {
		return invalidArgument("speaker must not be empty")
	}
	return p.editSegment(s, "set speaker", id, func(seg *transcript.Segment) {
		seg.Speaker = speaker
	})
}

// SetText replaces the text of the first segment with id. Empty text is allowed.
func (p *Pipeline) SetText(s *session.Session, id int, text string) error {
	return p.editSegment(s, "set text", id, func(seg *transcript.Segment) {
		seg.Text = text
	})
}

// editSegment rewrites the whole authoritative document with one segment
// changed. The first edit of a transcript-only session creates the labeled
// file and makes it authoritative.
func (p *Pipeline) editSegment(s *session.Session, op string, id int, change func(*transcript.Segment)) error {
	if err := s.BeginEdit(); err != nil {
		return err
	}
	defer s.EndEdit()

	st := s.State()
	doc, err := currentDocument(s.ID, st)
	if err != nil {
		return err
	}
	idx := doc.Find(id)
	if idx < 0 {
		logNoop(s, op, id)
		return nil
	}
	change(&doc.Segments[idx])

	labeled := transcript.LabeledPath(st.TranscriptPath)
	if err := artifact.Write(labeled, doc); err != nil {
		return err
	}
	if st.Labeled() {
		return nil
	}
	return p.commit(s, func(st *session.State) {
		st.LabeledPath = labeled
		st.Source = session.SourceLabeled
	})
}
