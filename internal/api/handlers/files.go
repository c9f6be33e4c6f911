package handlers

import (
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/video-stream/annotator/internal/ffmpeg"
	"github.com/video-stream/annotator/internal/storage"
)

// extractPath extracts and URL-decodes the wildcard path from chi router
func extractPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	// Clean any double slashes or trailing slashes
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	return decoded
}

// FilesHandler browses the media library videos are loaded from.
type FilesHandler struct {
	mediaPath string
	thumbDir  string
}

// NewFilesHandler creates the handler. Thumbnails are cached under dataPath.
func NewFilesHandler(mediaPath, dataPath string) *FilesHandler {
	return &FilesHandler{mediaPath: mediaPath, thumbDir: filepath.Join(dataPath, "thumbnails")}
}

func (h *FilesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if path == "" {
		path = "."
	}

	entries, err := storage.ListDirectory(h.mediaPath, path)
	if errors.Is(err, storage.ErrOutsideRoot) {
		jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}
	if err != nil {
		jsonError(w, "failed to list directory", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"path":    path,
		"entries": entries,
	}, http.StatusOK)
}

func (h *FilesHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if !storage.IsVideoFile(path) {
		jsonError(w, "not a video file", http.StatusBadRequest)
		return
	}
	fullPath, err := storage.Resolve(h.mediaPath, path)
	if err != nil {
		jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}

	info, err := ffmpeg.Probe(r.Context(), fullPath)
	if err != nil {
		jsonError(w, "failed to probe file", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, info, http.StatusOK)
}

// Thumbnail serves a cached poster frame of a library video.
func (h *FilesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	path := extractPath(r)
	if !storage.IsVideoFile(path) {
		jsonError(w, "not a video file", http.StatusBadRequest)
		return
	}
	fullPath, err := storage.Resolve(h.mediaPath, path)
	if err != nil {
		jsonError(w, "invalid path", http.StatusBadRequest)
		return
	}
	if _, err := os.Stat(fullPath); err != nil {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	sum := blake2b.Sum256([]byte(fullPath))
	thumbPath := filepath.Join(h.thumbDir, hex.EncodeToString(sum[:8])+".jpg")
	if err := ffmpeg.Thumbnail(r.Context(), fullPath, thumbPath); err != nil {
		log.Printf("[files] thumbnail for %s failed: %v", fullPath, err)
		jsonError(w, "failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, thumbPath)
}

func (h *FilesHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		jsonError(w, "query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	results, err := storage.Search(h.mediaPath, q, 50)
	if err != nil {
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"query":   q,
		"results": results,
	}, http.StatusOK)
}
