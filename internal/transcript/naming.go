package transcript

import "strings"

const (
	// ResultsFileName is the transcript file written inside each working directory.
	ResultsFileName = "whisper_results.json"
	labeledSuffix   = "_speaker_results.json"
)

// LabeledPath derives the speaker-labeled results path from a transcript path.
// The mapping only goes this way; a transcript path is never derived from a labeled one.
func LabeledPath(transcriptPath string) string {
	if transcriptPath == "" {
		return ""
	}
	return strings.TrimSuffix(transcriptPath, ".json") + labeledSuffix
}

// Labelable reports whether a segment's text is worth surfacing for labeling:
// once all periods are stripped something must remain.
func Labelable(text string) bool {
	return strings.ReplaceAll(text, ".", "") != ""
}
