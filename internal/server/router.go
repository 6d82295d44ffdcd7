package server

import (
	"net/http"

	"github.com/cloo-solutions/askme/internal/api"
	"github.com/cloo-solutions/askme/internal/api/handlers"
	"github.com/cloo-solutions/askme/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	maxJSONBodyBytes      int64 = 1 << 20
	defaultMaxUploadBytes int64 = 50 << 20
)

type RouterConfig struct {
	CorpusHandler  *handlers.CorpusHandler
	ChatHandler    *handlers.ChatHandler
	MaxUploadBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	uploadLimit := cfg.MaxUploadBytes
	if uploadLimit <= 0 {
		uploadLimit = defaultMaxUploadBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.With(middleware.MaxBodyBytes(uploadLimit)).Post("/files", cfg.CorpusHandler.Upload)

	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes))

		r.Get("/files", cfg.CorpusHandler.ListFiles)
		r.Post("/ingest", cfg.CorpusHandler.Ingest)
		r.Post("/qa", cfg.CorpusHandler.AddManualEntry)
		r.Post("/search", cfg.CorpusHandler.Search)

		r.Post("/ask", cfg.ChatHandler.Ask)
		r.Get("/tones", cfg.ChatHandler.ListTones)
		r.Get("/suggestions", cfg.ChatHandler.Suggestions)
		r.Get("/persona", cfg.ChatHandler.Persona)
	})

	return r
}
