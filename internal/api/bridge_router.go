package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ubhp-protocol/agenthub/internal/api/middleware"
	"github.com/ubhp-protocol/agenthub/internal/bridge"
	"github.com/ubhp-protocol/agenthub/internal/config"
)

// NewBridgeRouter creates and configures the bridge's HTTP router. The
// ingress route sits behind the token bucket and the credential check; the
// observability routes do not.
func NewBridgeRouter(logger zerolog.Logger, cfg *config.Config, b *bridge.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // 64KB max body
	r.Use(middleware.RequireJSON)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:       cfg.RateLimitRPS,
		Burst:     cfg.RateLimitBurst,
		Whitelist: cfg.RateLimitWhitelist,
	}, logger)
	auth := middleware.NewBridgeAuth(cfg.JWTSecret, cfg.APIKey, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/health", b.Health)

	// Ingress: rate limit first, then credentials
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(auth.RequireAuth)

		r.Post("/ubhp/send", b.Send)
	})

	return r
}
