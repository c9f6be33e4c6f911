package pipeline

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/labels"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/transcript"
)

// ImportResult reports an installed import. Path is the imported transcript file.
type ImportResult struct {
	Count int    `json:"segments_count"`
	Path  string `json:"file_path"`
}

// Export lists every segment of the current document sorted by start time.
func (p *Pipeline) Export(s *session.Session) ([]labels.Entry, error) {
	doc, err := p.CurrentDocument(s)
	if errors.Is(err, ErrNoResults) {
		return nil, ErrNoSegments
	}
	if err != nil {
		return nil, err
	}
	return labels.FromDocument(doc), nil
}

// Import installs a labeled segment list as the session's transcript and
// labeled document. Either everything is written and installed or nothing is.
func (p *Pipeline) Import(s *session.Session, raw []byte) (*ImportResult, error) {
	doc, err := labels.Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := s.BeginEdit(); err != nil {
		return nil, err
	}
	defer s.EndEdit()

	stamp := p.now().Format("20060102_150405")
	dir := filepath.Join(p.segmentsDir(), fmt.Sprintf("uploaded-segments-%s-%s", stamp, uniqueSuffix()))
	transcriptPath := filepath.Join(dir, transcript.ResultsFileName)
	labeledPath := transcript.LabeledPath(transcriptPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create import dir: %w", err)
	}
	fail := func(err error) (*ImportResult, error) {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("import segments: %w", err)
	}

	if err := artifact.Write(transcriptPath, doc); err != nil {
		return fail(err)
	}
	if err := artifact.Write(labeledPath, doc); err != nil {
		return fail(err)
	}
	err = p.commit(s, func(st *session.State) {
		st.TranscriptPath = transcriptPath
		st.LabeledPath = labeledPath
		st.Source = session.SourceLabeled
	})
	if err != nil {
		return fail(err)
	}

	log.Printf("[pipeline] session %s imported %d segments into %s", s.ID, len(doc.Segments), dir)
	return &ImportResult{Count: len(doc.Segments), Path: transcriptPath}, nil
}
