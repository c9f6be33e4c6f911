package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// settingsKeys defines which keys are allowed and their display metadata
var settingsKeys = []SettingDef{
	{Key: "whisper_language", Label: "Default Language", Group: "transcription", Kind: "string"},
	{Key: "whisper_model", Label: "Whisper Model", Group: "transcription", Kind: "string"},
	{Key: "diarize_denoise", Label: "Denoise Audio", Group: "speakers", Kind: "bool"},
	{Key: "diarize_denoise_prop", Label: "Denoise Proportion", Group: "speakers", Kind: "ratio"},
	{Key: "diarize_threshold", Label: "Verification Threshold", Group: "speakers", Kind: "ratio"},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Kind        string `json:"kind"`
	Placeholder string `json:"placeholder"`
}

// SettingsStore persists runtime settings.
type SettingsStore interface {
	GetAllSettings() (map[string]string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

type SettingsHandler struct {
	store    SettingsStore
	defaults map[string]string
}

// NewSettingsHandler creates the handler. defaults are the configured values
// shown as placeholders; a cleared setting falls back to them.
func NewSettingsHandler(store SettingsStore, defaults map[string]string) *SettingsHandler {
	return &SettingsHandler{store: store, defaults: defaults}
}

// GetSettings returns every known setting with its stored value
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.GetAllSettings()
	if err != nil {
		jsonError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	result := make([]SettingResponse, 0, len(settingsKeys))
	for _, def := range settingsKeys {
		def.Placeholder = h.defaults[def.Key]
		val := all[def.Key]
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   val != "",
		})
	}

	jsonResponse(w, result, http.StatusOK)
}

// UpdateSettings saves settings from the request body. An empty value clears
// the setting. Nothing is saved if any value is invalid.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	kinds := make(map[string]string, len(settingsKeys))
	for _, def := range settingsKeys {
		kinds[def.Key] = def.Kind
	}
	for key, value := range updates {
		kind, ok := kinds[key]
		if !ok {
			jsonError(w, "unknown setting: "+key, http.StatusBadRequest)
			return
		}
		if err := validateSetting(kind, value); err != nil {
			jsonError(w, fmt.Sprintf("%s: %v", key, err), http.StatusBadRequest)
			return
		}
	}

	for key, value := range updates {
		var err error
		if value == "" {
			err = h.store.DeleteSetting(key)
		} else {
			err = h.store.SetSetting(key, value)
		}
		if err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func validateSetting(kind, value string) error {
	if value == "" {
		return nil
	}
	switch kind {
	case "bool":
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("expected true or false")
		}
	case "ratio":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("expected a number within [0,1]")
		}
	}
	return nil
}
