package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Port          int
	MediaPath     string
	DataPath      string
	DBPath        string
	SessionSecret string // empty: token.NewService picks a random one
	CORSOrigins   []string

	// Transcription
	WhisperEngine   string
	WhisperURL      string
	OpenVINOURL     string
	WhisperModel    string
	WhisperLanguage string
	OpenAIKey       string

	// Speaker identification
	DiarizeURL      string
	DiarizeCommand  []string
	Denoise         bool
	DenoiseProp     float64
	VerifyThreshold float64
	StageRateLimit  int
}

func Load() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8000"))
	dataPath := getEnv("DATA_PATH", "data")

	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		corsOrigins = splitList(v, ",")
	}

	return &Config{
		Port:            port,
		MediaPath:       getEnv("MEDIA_PATH", "uploads"),
		DataPath:        dataPath,
		DBPath:          getEnv("DB_PATH", filepath.Join(dataPath, "annotator.db")),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		CORSOrigins:     corsOrigins,
		WhisperEngine:   getEnv("WHISPER_ENGINE", ""),
		WhisperURL:      getEnv("WHISPER_URL", ""),
		OpenVINOURL:     getEnv("OPENVINO_URL", ""),
		WhisperModel:    getEnv("WHISPER_MODEL", ""),
		WhisperLanguage: getEnv("WHISPER_LANGUAGE", "auto"),
		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		DiarizeURL:      getEnv("DIARIZE_URL", ""),
		DiarizeCommand:  strings.Fields(getEnv("DIARIZE_COMMAND", "")),
		Denoise:         getBool("DIARIZE_DENOISE", false),
		DenoiseProp:     getFloat("DIARIZE_DENOISE_PROP", 0.1),
		VerifyThreshold: getFloat("DIARIZE_THRESHOLD", 0.2),
		StageRateLimit:  getInt("STAGE_RATE_LIMIT", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v, sep string) []string {
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
