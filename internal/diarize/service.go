package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/video-stream/annotator/internal/transcript"
)

type identifyRequest struct {
	AudioPath             string  `json:"audio_path"`
	TranscriptPath        string  `json:"transcript_path"`
	Denoise               bool    `json:"denoise"`
	DenoiseProportion     float64 `json:"denoise_prop"`
	VerificationThreshold float64 `json:"verification_threshold"`
}

// serviceProcessor calls a speaker-identification HTTP service that shares
// the data directory with this process.
type serviceProcessor struct {
	url        string
	params     Params
	httpClient *http.Client
}

// NewServiceFactory returns a Factory for processors backed by the service at baseURL.
func NewServiceFactory(baseURL string) Factory {
	client := &http.Client{Timeout: 30 * time.Minute}
	url := strings.TrimRight(baseURL, "/") + "/identify"
	return func(p Params) (Processor, error) {
		if p.AudioPath == "" || p.TranscriptPath == "" {
			return nil, fmt.Errorf("speaker service needs audio and transcript paths")
		}
		return &serviceProcessor{url: url, params: p, httpClient: client}, nil
	}
}

func (s *serviceProcessor) Process(ctx context.Context) (*transcript.Document, error) {
	payload, err := json.Marshal(identifyRequest{
		AudioPath:             s.params.AudioPath,
		TranscriptPath:        s.params.TranscriptPath,
		Denoise:               s.params.Config.Denoise,
		DenoiseProportion:     s.params.Config.DenoiseProportion,
		VerificationThreshold: s.params.Config.VerificationThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[diarize] sending request to %s (audio: %s)", s.url, s.params.AudioPath)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speaker service request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speaker service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc transcript.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse speaker results: %w", err)
	}
	return &doc, nil
}
