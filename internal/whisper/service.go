package whisper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Service holds the configured whisper engines and routes requests to one of them.
// It is itself a Transcriber.
type Service struct {
	mu            sync.RWMutex
	engines       map[string]Transcriber
	defaultEngine string
}

// NewService creates a whisper service with the engines that have configuration
func NewService(whisperURL, openAIKey string) *Service {
	s := &Service{engines: make(map[string]Transcriber)}

	// Register whisper.cpp engine (always available if URL configured)
	if whisperURL != "" {
		s.RegisterEngine(NewWhisperCppClient(whisperURL))
		log.Printf("[whisper] whisper.cpp engine at %s", whisperURL)
	}

	if openAIKey != "" {
		s.RegisterEngine(NewOpenAIWhisperClient(openAIKey))
	}

	return s
}

// RegisterEngine adds an engine. The first registered engine becomes the default.
func (s *Service) RegisterEngine(engine Transcriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines[engine.Name()] = engine
	if s.defaultEngine == "" {
		s.defaultEngine = engine.Name()
	}
	log.Printf("[whisper] registered %s engine", engine.Name())
}

// SetDefault selects the engine used when a request names none.
func (s *Service) SetDefault(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.engines[name]; !ok {
		return fmt.Errorf("unknown whisper engine: %s", name)
	}
	s.defaultEngine = name
	return nil
}

func (s *Service) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultEngine
}

// Transcribe runs req on the engine it names, or on the default engine.
func (s *Service) Transcribe(ctx context.Context, req TranscribeRequest, updateProgress func(float64)) (*TranscribeResult, error) {
	s.mu.RLock()
	name := req.Engine
	if name == "" {
		name = s.defaultEngine
	}
	engine, ok := s.engines[name]
	s.mu.RUnlock()

	if name == "" {
		return nil, fmt.Errorf("no whisper engine configured (set WHISPER_URL or OPENAI_API_KEY)")
	}
	if !ok {
		return nil, fmt.Errorf("unknown whisper engine: %s (available: %v)", name, s.EngineNames())
	}

	log.Printf("[whisper] starting transcription: engine=%s file=%s language=%s", name, req.FilePath, req.Language)
	return engine.Transcribe(ctx, req, updateProgress)
}

// EngineNames lists registered engines in name order
func (s *Service) EngineNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.engines))
	for name := range s.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
