package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/video-stream/annotator/internal/api"
	"github.com/video-stream/annotator/internal/config"
	"github.com/video-stream/annotator/internal/db"
	"github.com/video-stream/annotator/internal/diarize"
	"github.com/video-stream/annotator/internal/events"
	"github.com/video-stream/annotator/internal/job"
	"github.com/video-stream/annotator/internal/mcpserver"
	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/session"
	"github.com/video-stream/annotator/internal/token"
	"github.com/video-stream/annotator/internal/whisper"
)

const version = "0.1.0"

// sessionTTL is how long a browser keeps its annotation session.
const sessionTTL = 30 * 24 * time.Hour

func main() {
	config.LoadDefaultEnv()
	cfg := config.Load()

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataPath, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	asr := whisper.NewService(cfg.WhisperURL, cfg.OpenAIKey)
	if cfg.OpenVINOURL != "" {
		asr.RegisterEngine(whisper.NewOpenVINOClient(cfg.OpenVINOURL))
	}
	if cfg.WhisperEngine != "" {
		if err := asr.SetDefault(cfg.WhisperEngine); err != nil {
			log.Fatalf("Invalid WHISPER_ENGINE: %v", err)
		}
	}
	if asr.Name() == "" {
		log.Println("WARNING: no whisper engine configured (set WHISPER_URL, OPENVINO_URL or OPENAI_API_KEY); transcription will fail")
	}

	factory, diarizer := speakerIdentifier(cfg)
	sessions := session.NewManager(cfg.MediaPath, database)
	p := pipeline.New(sessions, asr, diarize.NewCache(factory), database, pipeline.Options{
		DataPath: cfg.DataPath,
		Engine:   cfg.WhisperEngine,
		Language: cfg.WhisperLanguage,
		Model:    cfg.WhisperModel,
		Diarize: diarize.Config{
			Denoise:               cfg.Denoise,
			DenoiseProportion:     cfg.DenoiseProp,
			VerificationThreshold: cfg.VerifyThreshold,
		},
	})

	if len(os.Args) > 1 && os.Args[1] == "mcp" {
		if err := mcpserver.New(p, version).ServeStdio(); err != nil {
			log.Fatalf("MCP server failed: %v", err)
		}
		return
	}

	hub := events.NewHub()
	defer hub.Close()
	p.SetPublisher(hub)

	jobQueue := job.NewJobQueue(database.DB())
	defer jobQueue.Stop()
	jobQueue.SetNotifier(func(j *job.Job) {
		hub.Publish(events.Event{Type: events.TypeJob, SessionID: j.SessionID, Data: j, Time: time.Now()})
	})
	p.UseQueue(jobQueue)

	watcher, err := events.WatchMedia(cfg.MediaPath, hub.Publish)
	if err != nil {
		log.Printf("WARNING: media library changes will not be pushed: %v", err)
	} else {
		defer watcher.Close()
	}

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Pipeline: p,
		Jobs:     jobQueue,
		Settings: database,
		Tokens:   token.NewService(cfg.SessionSecret, sessionTTL),
		Hub:      hub,
		Engines:  asr,
		Diarizer: diarizer,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	log.Printf("Starting server on %s", addr)
	log.Printf("Media path: %s", cfg.MediaPath)
	log.Printf("Transcription engine: %q, speaker identification: %s", asr.Name(), diarizer)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

// speakerIdentifier picks the diarization backend: a service, then a local
// command, then the built-in gap heuristic.
func speakerIdentifier(cfg *config.Config) (diarize.Factory, string) {
	switch {
	case cfg.DiarizeURL != "":
		log.Printf("[diarize] speaker identification service at %s", cfg.DiarizeURL)
		return diarize.NewServiceFactory(cfg.DiarizeURL), "service"
	case len(cfg.DiarizeCommand) > 0:
		log.Printf("[diarize] speaker identification command %v", cfg.DiarizeCommand)
		return diarize.NewCommandFactory(cfg.DiarizeCommand), "command"
	default:
		log.Println("WARNING: no speaker identification engine configured (DIARIZE_URL or DIARIZE_COMMAND); using pause-based heuristic")
		return diarize.NewGapFactory(), "heuristic"
	}
}
