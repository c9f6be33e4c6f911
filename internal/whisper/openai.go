package whisper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/video-stream/annotator/internal/ffmpeg"
)

const openAITranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
const maxOpenAIFileSize = 25 * 1024 * 1024 // 25MB limit

// OpenAIWhisperClient uses the OpenAI Whisper API
type OpenAIWhisperClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
	extract    func(ctx context.Context, mediaPath, outDir string) (string, error)
}

func NewOpenAIWhisperClient(apiKey string) *OpenAIWhisperClient {
	return &OpenAIWhisperClient{
		apiKey: apiKey,
		url:    openAITranscriptionURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		extract: ffmpeg.ExtractAudio,
	}
}

func (c *OpenAIWhisperClient) Name() string {
	return EngineOpenAI
}

func (c *OpenAIWhisperClient) Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not configured")
	}

	updateProgress(0.05)
	audioPath, err := c.extract(ctx, req.FilePath, req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxOpenAIFileSize {
		return nil, fmt.Errorf("audio is %d bytes, over the OpenAI upload limit of %d", info.Size(), maxOpenAIFileSize)
	}

	updateProgress(0.2)

	model := req.Model
	if model == "" {
		model = "whisper-1"
	}
	fields := map[string]string{
		"model":                     model,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "segment",
	}
	if lang := languageField(req.Language); lang != "" {
		fields["language"] = lang
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	log.Printf("[whisper-openai] sending request to OpenAI API")

	body, err := postAudio(ctx, c.httpClient, c.url, audioPath, fields, header)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API: %w", err)
	}

	doc, detected, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if detected == "" {
		detected = req.Language
	}

	updateProgress(0.95)
	return &TranscribeResult{Document: doc, AudioPath: audioPath, Language: detected}, nil
}
