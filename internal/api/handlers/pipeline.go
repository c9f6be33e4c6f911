package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/video-stream/annotator/internal/api/middleware"
	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/session"
)

// maxUploadSize bounds uploaded segment files.
const maxUploadSize = 32 << 20

var errUploadTooLarge = fmt.Errorf("File is too large (limit %d MB)", maxUploadSize>>20)

type PipelineHandler struct {
	pipeline  *pipeline.Pipeline
	sessions  *session.Manager
	maxUpload int64
}

func NewPipelineHandler(p *pipeline.Pipeline) *PipelineHandler {
	return &PipelineHandler{pipeline: p, sessions: p.Sessions(), maxUpload: maxUploadSize}
}

func (h *PipelineHandler) active(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Active(middleware.GetSessionID(r))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return s, true
}

// LoadVideo points the caller's session at a video under the media root.
func (h *PipelineHandler) LoadVideo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VideoPath string `json:"video_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	info, err := h.sessions.LoadVideo(r.Context(), middleware.GetSessionID(r), req.VideoPath)
	if err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"success":   true,
		"filename":  info.DisplayName,
		"filepath":  info.VideoPath,
		"video_url": info.VideoURL,
		"media":     info.Media,
	}, http.StatusOK)
}

// Session returns the caller's session pointers and running stage.
func (h *PipelineHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetSessionID(r)
	s, err := h.sessions.Active(id)
	if errors.Is(err, session.ErrNoActiveSession) {
		jsonResponse(w, map[string]interface{}{"session_id": id, "active": false}, http.StatusOK)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"session_id": id,
		"active":     true,
		"state":      s.State(),
		"stage":      s.Stage(),
	}, http.StatusOK)
}

// Transcribe runs speech-to-text, or queues it with ?async=true.
func (h *PipelineHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	var opts pipeline.TranscribeOptions
	if !decodeOptional(w, r, &opts) {
		return
	}

	if isAsync(r) {
		j, err := h.pipeline.StartTranscription(s, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, map[string]interface{}{"success": true, "job": j}, http.StatusAccepted)
		return
	}

	res, err := h.pipeline.Transcribe(r.Context(), s, opts, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"success":    true,
		"result":     res.Document,
		"audio_path": res.AudioPath,
		"language":   res.Language,
	}, http.StatusOK)
}

// IdentifySpeakers runs speaker identification, or queues it with ?async=true.
// Body fields left out keep the configured defaults.
func (h *PipelineHandler) IdentifySpeakers(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	cfg := h.pipeline.DiarizeDefaults()
	if !decodeOptional(w, r, &cfg) {
		return
	}

	if isAsync(r) {
		j, err := h.pipeline.StartSpeakerIdentification(s, cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, map[string]interface{}{"success": true, "job": j}, http.StatusAccepted)
		return
	}

	res, err := h.pipeline.IdentifySpeakers(r.Context(), s, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"success": true,
		"message": "Speaker identification completed successfully",
		"results": res.Document,
	}, http.StatusOK)
}

// GetSegments lists the labelable segments of the current document.
func (h *PipelineHandler) GetSegments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	segs, err := h.pipeline.SegmentViews(s)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, segs, http.StatusOK)
}

func (h *PipelineHandler) UpdateSpeaker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SegmentID *int   `json:"segment_id"`
		Speaker   string `json:"speaker"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SegmentID == nil || req.Speaker == "" {
		jsonError(w, "Missing segment_id or speaker", http.StatusBadRequest)
		return
	}
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	if err := h.pipeline.SetSpeaker(s, *req.SegmentID, req.Speaker); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"success": true, "message": "Speaker updated successfully"}, http.StatusOK)
}

func (h *PipelineHandler) UpdateText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SegmentID *int    `json:"segment_id"`
		Text      *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SegmentID == nil || req.Text == nil {
		jsonError(w, "Missing segment_id or text", http.StatusBadRequest)
		return
	}
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	if err := h.pipeline.SetText(s, *req.SegmentID, *req.Text); err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{"success": true, "message": "Transcript text updated successfully"}, http.StatusOK)
}

// ExportLabels returns every segment sorted by start time.
func (h *PipelineHandler) ExportLabels(w http.ResponseWriter, r *http.Request) {
	s, ok := h.active(w, r)
	if !ok {
		return
	}
	entries, err := h.pipeline.Export(s)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, entries, http.StatusOK)
}

// UploadSegments imports a labeled segment list, either as a multipart
// "file" field holding a .json file or as the raw request body.
func (h *PipelineHandler) UploadSegments(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	raw, err := readUpload(r, h.maxUpload)
	if errors.Is(err, errUploadTooLarge) {
		jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s, err := h.sessions.Ensure(middleware.GetSessionID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.pipeline.Import(s, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"success":        true,
		"message":        fmt.Sprintf("Successfully uploaded and processed %d segments", res.Count),
		"segments_count": res.Count,
		"file_path":      res.Path,
	}, http.StatusOK)
}

func readUpload(r *http.Request, limit int64) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		raw, err := io.ReadAll(r.Body)
		if isTooLarge(err) {
			return nil, errUploadTooLarge
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return raw, nil
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		if isTooLarge(err) {
			return nil, errUploadTooLarge
		}
		return nil, errors.New("No file provided")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("No file provided")
	}
	defer file.Close()
	if header.Filename == "" {
		return nil, errors.New("No file selected")
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".json") {
		return nil, errors.New("File must be a JSON file")
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return raw, nil
}

// isTooLarge reports whether err comes from http.MaxBytesReader. The
// multipart reader does not always wrap it, so the message is checked too.
func isTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

func isAsync(r *http.Request) bool {
	v := r.URL.Query().Get("async")
	return v == "1" || v == "true"
}

// decodeOptional decodes a JSON body into dst when one is present.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && err != io.EOF {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
