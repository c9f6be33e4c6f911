package whisper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/video-stream/annotator/internal/ffmpeg"
)

// WhisperCppClient talks to the whisper.cpp HTTP server (whisper-server)
type WhisperCppClient struct {
	baseURL    string
	httpClient *http.Client
	extract    func(ctx context.Context, mediaPath, outDir string) (string, error)
}

// NewWhisperCppClient creates a client for the whisper.cpp server
func NewWhisperCppClient(baseURL string) *WhisperCppClient {
	return &WhisperCppClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // transcription can be very long
		},
		extract: ffmpeg.ExtractAudio,
	}
}

func (c *WhisperCppClient) Name() string {
	return EngineWhisperCpp
}

// Transcribe normalizes the media's audio into req.OutputDir and sends it to whisper-server
func (c *WhisperCppClient) Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	updateProgress(0.05)
	audioPath, err := c.extract(ctx, req.FilePath, req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	updateProgress(0.15)

	result, err := c.sendToServer(ctx, audioPath, req.Language)
	if err != nil {
		return nil, err
	}
	result.AudioPath = audioPath

	updateProgress(0.95)
	return result, nil
}

func (c *WhisperCppClient) sendToServer(ctx context.Context, audioPath, language string) (*TranscribeResult, error) {
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if lang := languageField(language); lang != "" {
		fields["language"] = lang
	}

	url := c.baseURL + "/inference"
	log.Printf("[whisper] sending request to %s (audio: %s)", url, audioPath)

	body, err := postAudio(ctx, c.httpClient, url, audioPath, fields, nil)
	if err != nil {
		return nil, fmt.Errorf("whisper server: %w", err)
	}

	doc, detected, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if detected == "" {
		detected = language
	}
	return &TranscribeResult{Document: doc, Language: detected}, nil
}
