package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/agentkb/internal/api"
	"github.com/cloo-solutions/agentkb/internal/api/handlers"
	"github.com/cloo-solutions/agentkb/internal/api/middleware"
	"github.com/cloo-solutions/agentkb/internal/metrics"
)

const maxBodyBytes int64 = 5 * 1024 * 1024

type RouterConfig struct {
	AuthValidator       middleware.AuthValidator
	AgentHandler        *handlers.AgentHandler
	DocumentHandler     *handlers.DocumentHandler
	SegmentHandler      *handlers.SegmentHandler
	ChunkingHandler     *handlers.ChunkingHandler
	SearchHandler       *handlers.SearchHandler
	RegenerationHandler *handlers.RegenerationHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover)
	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", cfg.AgentHandler.Create)
			r.Get("/", cfg.AgentHandler.List)
			r.Get("/{id}", cfg.AgentHandler.Get)
			r.Put("/{id}", cfg.AgentHandler.Update)
			r.Post("/{id}/documents", cfg.DocumentHandler.Create)
			r.Get("/{id}/documents", cfg.DocumentHandler.List)
			r.Post("/{id}/search", cfg.SearchHandler.Search)
		})

		r.Route("/documents/{id}", func(r chi.Router) {
			r.Get("/", cfg.DocumentHandler.Get)
			r.Put("/", cfg.DocumentHandler.Update)
			r.Delete("/", cfg.DocumentHandler.Delete)
			r.Get("/segments", cfg.SegmentHandler.List)
			r.Post("/chunks", cfg.ChunkingHandler.CreateChunk)
			r.Post("/chunks/bulk", cfg.ChunkingHandler.BulkCreateChunks)
			r.Post("/chunks/smart", cfg.ChunkingHandler.SmartChunk)
			r.Post("/blocks/import", cfg.ChunkingHandler.ImportBlocks)
			r.Post("/embeddings/regenerate", cfg.RegenerationHandler.Regenerate)
		})

		r.Route("/segments/{id}", func(r chi.Router) {
			r.Put("/", cfg.SegmentHandler.Update)
			r.Delete("/", cfg.SegmentHandler.Delete)
		})
	})

	return r
}
