package whisper

import (
	"context"

	"github.com/video-stream/annotator/internal/transcript"
)

// Engine names
const (
	EngineWhisperCpp = "whisper.cpp"
	EngineOpenAI     = "openai"
	EngineOpenVINO   = "openvino-genai"
)

// TranscribeRequest is the input for a transcription
type TranscribeRequest struct {
	FilePath  string // absolute path to the media file
	OutputDir string // where the normalized audio artifact is written
	Engine    string // engine name; empty selects the service default
	Language  string // "auto", "ko", "en", "ja", etc.
	Model     string // engine-specific model name
}

// TranscribeResult is the output of a transcription
type TranscribeResult struct {
	Document  *transcript.Document
	AudioPath string // normalized 16kHz mono WAV inside OutputDir
	Language  string // detected or requested language
}

// Transcriber is the common interface for all whisper engines
type Transcriber interface {
	// Transcribe converts a media file into a segment document
	Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error)
	// Name returns the engine name
	Name() string
}
