package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/video-stream/annotator/internal/transcript"
)

// postAudio uploads audioPath as the multipart "file" field along with fields
// and returns the response body of a 200 reply.
func postAudio(ctx context.Context, client *http.Client, url, audioPath string, fields map[string]string, header http.Header) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	audioFile, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer audioFile.Close()

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, audioFile); err != nil {
		return nil, fmt.Errorf("copy audio data: %w", err)
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server error (status %d): %s", resp.StatusCode, truncate(string(body), 500))
	}
	return body, nil
}

// decodeDocument parses a verbose_json transcription reply.
func decodeDocument(body []byte) (*transcript.Document, string, error) {
	var doc transcript.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, "", fmt.Errorf("parse transcription: %w", err)
	}
	var lang string
	if raw, ok := doc.Extra["language"]; ok {
		json.Unmarshal(raw, &lang)
	}
	return &doc, lang, nil
}

func languageField(language string) string {
	if language == "" || language == "auto" {
		return ""
	}
	return language
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
