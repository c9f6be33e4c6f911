// Package artifact reads and writes transcript result documents on disk.
// It holds no state: every call is keyed by the file path it is given.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/video-stream/annotator/internal/transcript"
)

// Read loads and validates the results document at path.
func Read(path string) (*transcript.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("read results: empty path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var doc transcript.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return &doc, nil
}

// Write validates doc and replaces the file at path with it.
// The previous content stays intact if anything fails before the final rename.
func Write(path string, doc *transcript.Document) error {
	if doc == nil {
		return fmt.Errorf("write results: nil document")
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return atomicWrite(path, data)
}

// Exists reports whether a regular file is present at path.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".results-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing results: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing results: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming results: %w", err)
	}
	return nil
}
