package server

import (
	"net/http"

	"github.com/cloo-solutions/labelrag/internal/api"
	"github.com/cloo-solutions/labelrag/internal/api/handlers"
	"github.com/cloo-solutions/labelrag/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// Nil leaves every route open.
	AuthValidator middleware.AuthValidator
	QueryHandler  *handlers.QueryHandler
	IngestHandler *handlers.IngestHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}

		r.Post("/ask", cfg.QueryHandler.Ask)
		r.Post("/search", cfg.QueryHandler.Search)
		r.Get("/stats", cfg.QueryHandler.Stats)

		r.Post("/documents", cfg.IngestHandler.Documents)
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/", cfg.IngestHandler.Enqueue)
			r.Get("/{id}", cfg.IngestHandler.GetJob)
		})
	})

	return r
}
