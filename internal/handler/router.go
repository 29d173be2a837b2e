package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/mathgpt/internal/config"
	"github.com/zhouzirui/mathgpt/internal/handler/assistant"
	"github.com/zhouzirui/mathgpt/internal/handler/category"
	"github.com/zhouzirui/mathgpt/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/mathgpt/internal/middleware"
	"github.com/zhouzirui/mathgpt/internal/model/taxonomy"
	"github.com/zhouzirui/mathgpt/pkg/utils"
)

// AssistantService answers questions both in one piece and as a stream.
type AssistantService interface {
	assistant.Responder
	stream.Streamer
}

// NewRouter wires HTTP routes to core services. A nil service leaves the
// assistant routes answering 503.
func NewRouter(cfg config.ServerConfig, categories taxonomy.Registry, svc AssistantService, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	metrics := middlewarePkg.NewMetrics()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)
	r.Use(metrics.Middleware)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	categoryHandler := category.New(categories)

	r.Route("/api", func(api chi.Router) {
		categoryHandler.RegisterRoutes(api)

		if svc == nil {
			unavailable := func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "assistant unavailable")
			}
			api.Post("/chat", unavailable)
			api.Post("/clear-history", unavailable)
			api.Get("/history", unavailable)
			api.Get("/chat/stream", unavailable)
			api.Get("/chat/ws", unavailable)
			return
		}

		api.Group(func(limited chi.Router) {
			limited.Use(middlewarePkg.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger))
			assistant.New(svc, logger).RegisterRoutes(limited)
			stream.New(svc, logger).RegisterRoutes(limited)
			stream.NewWebSocketHandler(svc, logger).RegisterWebSocketRoutes(limited)
		})
	})

	return r
}
