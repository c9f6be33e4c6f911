package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/video-stream/annotator/internal/job"
	"github.com/video-stream/annotator/internal/labels"
	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/session"
)

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps pipeline and session errors to the error envelope.
func writeError(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	var formatErr *labels.FormatError
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, session.ErrStageInProgress):
		return http.StatusConflict
	case errors.As(err, &formatErr):
		return http.StatusBadRequest
	case errors.As(err, &stageErr):
		return http.StatusInternalServerError
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrNoActiveSession),
		errors.Is(err, pipeline.ErrNoTranscript),
		errors.Is(err, pipeline.ErrNoResults),
		errors.Is(err, pipeline.ErrNoSegments),
		errors.Is(err, pipeline.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		log.Printf("[api] internal error: %v", err)
		return http.StatusInternalServerError
	}
}
