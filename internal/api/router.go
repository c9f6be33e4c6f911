package api

import (
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/video-stream/annotator/internal/api/handlers"
	"github.com/video-stream/annotator/internal/api/middleware"
	"github.com/video-stream/annotator/internal/config"
	"github.com/video-stream/annotator/internal/events"
	"github.com/video-stream/annotator/internal/job"
	"github.com/video-stream/annotator/internal/pipeline"
	"github.com/video-stream/annotator/internal/token"
)

// maxJSONBody bounds plain JSON request bodies.
const maxJSONBody = 1 << 20

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Jobs     *job.JobQueue
	Settings handlers.SettingsStore
	Tokens   *token.Service
	Hub      *events.Hub
	Engines  handlers.EngineLister
	Diarizer string
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	cfg := d.Config

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))

	// Handlers
	pipelineHandler := handlers.NewPipelineHandler(d.Pipeline)
	mediaHandler := handlers.NewMediaHandler(d.Pipeline.Sessions())
	filesHandler := handlers.NewFilesHandler(cfg.MediaPath, cfg.DataPath)
	jobHandler := handlers.NewJobHandler(d.Jobs)
	settingsHandler := handlers.NewSettingsHandler(d.Settings, settingDefaults(cfg))
	enginesHandler := handlers.NewEnginesHandler(d.Engines, cfg.WhisperURL, d.Diarizer)
	eventsHandler := handlers.NewEventsHandler(d.Hub)
	stageLimiter := middleware.NewRateLimiter(cfg.StageRateLimit, time.Minute)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", enginesHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionMiddleware(d.Tokens))

			// Session and pipeline
			r.Get("/session", pipelineHandler.Session)
			r.Get("/serve_video/{name}", mediaHandler.ServeVideo)
			r.Get("/get_segments", pipelineHandler.GetSegments)
			r.Get("/export_labels", pipelineHandler.ExportLabels)
			r.Post("/upload_segments", pipelineHandler.UploadSegments)

			r.Group(func(r chi.Router) {
				r.Use(middleware.MaxBodySize(maxJSONBody))
				r.Post("/load_video", pipelineHandler.LoadVideo)
				r.Post("/update_segment_speaker", pipelineHandler.UpdateSpeaker)
				r.Post("/update_segment_text", pipelineHandler.UpdateText)
				r.Put("/settings", settingsHandler.UpdateSettings)

				// Stages are expensive; limit how often a session may start one
				r.With(stageLimiter.Handler).Post("/whisper_transcribe", pipelineHandler.Transcribe)
				r.With(stageLimiter.Handler).Post("/speaker_identification", pipelineHandler.IdentifySpeakers)
			})

			// Media library
			r.Get("/files/tree", filesHandler.GetTree)
			r.Get("/files/tree/*", filesHandler.GetTree)
			r.Get("/files/info/*", filesHandler.GetInfo)
			r.Get("/files/thumbnail/*", filesHandler.Thumbnail)
			r.Get("/files/search", filesHandler.Search)

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)

			// Settings and engines
			r.Get("/settings", settingsHandler.GetSettings)
			r.Get("/whisper/engines", enginesHandler.ListEngines)

			// Notifications
			r.Get("/events", eventsHandler.Stream)
		})
	})

	return r
}

// settingDefaults are the configured values a cleared setting falls back to.
func settingDefaults(cfg *config.Config) map[string]string {
	return map[string]string{
		"whisper_language":     cfg.WhisperLanguage,
		"whisper_model":        cfg.WhisperModel,
		"diarize_denoise":      strconv.FormatBool(cfg.Denoise),
		"diarize_denoise_prop": strconv.FormatFloat(cfg.DenoiseProp, 'f', -1, 64),
		"diarize_threshold":    strconv.FormatFloat(cfg.VerifyThreshold, 'f', -1, 64),
	}
}
