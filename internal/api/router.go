package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/api/middleware"
	"github.com/ubhp-protocol/agenthub/internal/config"
	"github.com/ubhp-protocol/agenthub/internal/handlers"
	"github.com/ubhp-protocol/agenthub/internal/hub"
)

// NewHubRouter creates and configures the hub's HTTP router. The root path
// is the WebSocket endpoint; everything else is observability and registry
// surface.
func NewHubRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, relay *hub.Hub) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WebSocket endpoint: GET /?id=<string>&kind=client|agent
	r.Get("/", relay.HandleWS)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/status", h.Status)
	r.Get("/stats", h.Stats)
	r.Get("/who/{id}", h.Who)
	r.Get("/history/{channel}", h.History)
	r.Post("/register", h.Register)

	return r
}
