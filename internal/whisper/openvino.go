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

const openVINOMaxRetries = 3

// OpenVINOClient talks to an OpenVINO GenAI WhisperPipeline server through
// its OpenAI-compatible transcription endpoint.
type OpenVINOClient struct {
	baseURL    string
	httpClient *http.Client
	extract    func(ctx context.Context, mediaPath, outDir string) (string, error)
	backoff    func(attempt int) time.Duration
}

func NewOpenVINOClient(baseURL string) *OpenVINOClient {
	return &OpenVINOClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute, // transcription can be very long
		},
		extract: ffmpeg.ExtractAudio,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

func (c *OpenVINOClient) Name() string {
	return EngineOpenVINO
}

func (c *OpenVINOClient) Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	updateProgress(0.05)
	audioPath, err := c.extract(ctx, req.FilePath, req.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}
	updateProgress(0.1)

	fields := map[string]string{"response_format": "verbose_json"}
	if lang := languageField(req.Language); lang != "" {
		fields["language"] = lang
	}
	if req.Model != "" {
		fields["model"] = req.Model
	}

	body, err := c.sendWithRetry(ctx, audioPath, fields)
	if err != nil {
		return nil, err
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

func (c *OpenVINOClient) sendWithRetry(ctx context.Context, audioPath string, fields map[string]string) ([]byte, error) {
	url := c.baseURL + "/v1/audio/transcriptions"
	var lastErr error

	for attempt := 0; attempt <= openVINOMaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			log.Printf("[openvino] retry %d/%d after %v", attempt, openVINOMaxRetries, wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		log.Printf("[openvino] sending request to %s (audio: %s)", url, audioPath)
		body, err := postAudio(ctx, c.httpClient, url, audioPath, fields, nil)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if isOOMError(err.Error()) {
			return nil, fmt.Errorf("GPU out of memory, try a smaller model: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, fmt.Errorf("openvino server: %w", err)
		}
		log.Printf("[openvino] transient error (attempt %d/%d): %v", attempt+1, openVINOMaxRetries+1, err)
	}

	return nil, fmt.Errorf("openvino server failed after %d attempts: %w", openVINOMaxRetries+1, lastErr)
}

// isOOMError reports whether a server reply indicates GPU memory exhaustion.
func isOOMError(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "out of memory") ||
		strings.Contains(lower, "oom") ||
		strings.Contains(lower, "sycl") && strings.Contains(lower, "error")
}

// isRetryable reports whether a failed upload is transient.
func isRetryable(err error) bool {
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "EOF", "timeout", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
