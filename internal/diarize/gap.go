package diarize

import (
	"context"
	"fmt"
	"sort"

	"github.com/video-stream/annotator/internal/artifact"
	"github.com/video-stream/annotator/internal/transcript"
)

// gapThreshold is the pause, in seconds, that switches the heuristic to the other speaker.
const gapThreshold = 1.5

// gapProcessor is a minimal heuristic: alternate between two speakers when the
// pause between consecutive segments exceeds gapThreshold. Segments that
// already carry a speaker keep it and only unlabeled ones are assigned.
type gapProcessor struct {
	transcriptPath string
}

// NewGapFactory returns a Factory for the built-in heuristic, used when no
// speaker identification engine is configured.
func NewGapFactory() Factory {
	return func(p Params) (Processor, error) {
		if p.TranscriptPath == "" {
			return nil, fmt.Errorf("gap heuristic needs a transcript path")
		}
		return &gapProcessor{transcriptPath: p.TranscriptPath}, nil
	}
}

func (g *gapProcessor) Process(ctx context.Context) (*transcript.Document, error) {
	doc, err := artifact.Read(g.transcriptPath)
	if err != nil {
		return nil, err
	}
	assignByGaps(doc)
	return doc, nil
}

func assignByGaps(doc *transcript.Document) {
	if len(doc.Segments) == 0 {
		return
	}

	// Walk in time order without reordering the stored segments.
	order := make([]int, len(doc.Segments))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return doc.Segments[order[a]].Start < doc.Segments[order[b]].Start
	})

	speaker := 1
	for n, idx := range order {
		if n > 0 {
			prev := doc.Segments[order[n-1]]
			if doc.Segments[idx].Start-prev.End > gapThreshold {
				speaker = 3 - speaker
			}
		}
		if doc.Segments[idx].Speaker == "" {
			doc.Segments[idx].Speaker = fmt.Sprintf("Speaker %d", speaker)
		}
	}
}
