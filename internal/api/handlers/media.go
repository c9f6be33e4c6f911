package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/video-stream/annotator/internal/api/middleware"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/storage"
)

type MediaHandler struct {
	sessions *session.Manager
}

func NewMediaHandler(sessions *session.Manager) *MediaHandler {
	return &MediaHandler{sessions: sessions}
}

// ServeVideo streams the caller's loaded video. The name in the URL must be
// the loaded video's file name; other files are never served from here.
func (h *MediaHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Active(middleware.GetSessionID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	videoPath := s.State().VideoPath
	if videoPath == "" {
		jsonError(w, session.ErrNoActiveSession.Error(), http.StatusBadRequest)
		return
	}
	if name := chi.URLParam(r, "name"); name != filepath.Base(videoPath) {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", storage.MimeType(videoPath))
	http.ServeFile(w, r, videoPath)
}
