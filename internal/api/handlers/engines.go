package handlers

import (
	"net/http"
	"time"

	"github.com/video-stream/annotator/internal/whisper"
)

// EngineLister is implemented by whisper.Service.
type EngineLister interface {
	EngineNames() []string
	Name() string
}

type EnginesHandler struct {
	engines    EngineLister
	whisperURL string
	diarizer   string
}

func NewEnginesHandler(engines EngineLister, whisperURL, diarizer string) *EnginesHandler {
	return &EnginesHandler{engines: engines, whisperURL: whisperURL, diarizer: diarizer}
}

// AvailableEngine is the dropdown-friendly format for frontends
type AvailableEngine struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

var engineLabels = map[string]string{
	whisper.EngineWhisperCpp: "whisper.cpp server",
	whisper.EngineOpenAI:     "OpenAI Whisper API",
	whisper.EngineOpenVINO:   "OpenVINO GenAI server",
}

// ListEngines returns the registered transcription engines
func (h *EnginesHandler) ListEngines(w http.ResponseWriter, r *http.Request) {
	def := h.engines.Name()
	engines := []AvailableEngine{}
	for _, name := range h.engines.EngineNames() {
		label := engineLabels[name]
		if label == "" {
			label = name
		}
		engines = append(engines, AvailableEngine{Value: name, Label: label, Default: name == def})
	}
	jsonResponse(w, engines, http.StatusOK)
}

// Health reports the configured engines and whether the whisper.cpp server
// answers.
func (h *EnginesHandler) Health(w http.ResponseWriter, r *http.Request) {
	type WhisperHealth struct {
		OK        bool   `json:"ok"`
		LatencyMs int64  `json:"latency_ms,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	resp := map[string]interface{}{
		"status":             "ok",
		"default_engine":     h.engines.Name(),
		"speaker_identifier": h.diarizer,
	}

	if h.whisperURL != "" {
		client := &http.Client{Timeout: 5 * time.Second}
		start := time.Now()
		res, err := client.Get(h.whisperURL)
		if err != nil {
			resp["whisper"] = WhisperHealth{OK: false, Error: err.Error()}
		} else {
			res.Body.Close()
			resp["whisper"] = WhisperHealth{OK: true, LatencyMs: time.Since(start).Milliseconds()}
		}
	}

	jsonResponse(w, resp, http.StatusOK)
}
