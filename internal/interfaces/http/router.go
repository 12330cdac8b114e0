// Package http assembles the chi router and HTTP server of the API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/LumiGrid/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LumiGrid/internal/interfaces/http/handlers"
	"github.com/turtacn/LumiGrid/internal/interfaces/http/middleware"
)

type RouterConfig struct {
	// Handlers
	CalculationHandler *handlers.CalculationHandler
	FixtureHandler     *handlers.FixtureHandler
	HealthHandler      *handlers.HealthHandler

	// Middleware
	CORSMiddleware      *middleware.CORSMiddleware
	LoggingMiddleware   *middleware.LoggingMiddleware
	RateLimitMiddleware *middleware.RateLimitMiddleware

	// MaxBodySize caps request bodies; 0 leaves them unbounded.
	MaxBodySize int64

	MetricsCollector prometheus.MetricsCollector
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.CORSMiddleware != nil {
		r.Use(cfg.CORSMiddleware.Handler)
	}
	if cfg.LoggingMiddleware != nil {
		r.Use(cfg.LoggingMiddleware.Handler)
	}
	if cfg.RateLimitMiddleware != nil {
		r.Use(cfg.RateLimitMiddleware.Handler)
	}
	if cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/healthz/detail", cfg.HealthHandler.Detailed)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(chimw.AllowContentType("application/json"))
		registerCalculationRoutes(api, cfg.CalculationHandler)
		registerFixtureRoutes(api, cfg.FixtureHandler)
	})

	return r
}

func registerCalculationRoutes(r chi.Router, h *handlers.CalculationHandler) {
	if h == nil {
		return
	}
	r.Route("/calculations", func(cr chi.Router) {
		cr.Get("/", h.List)
		cr.Post("/", h.Calculate)
		cr.Post("/jobs", h.Submit)
		cr.Get("/search", h.Search)

		cr.Route("/{id}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Get("/report", h.Report)
		})
	})
}

func registerFixtureRoutes(r chi.Router, h *handlers.FixtureHandler) {
	if h == nil {
		return
	}
	r.Route("/fixtures", func(fr chi.Router) {
		fr.Get("/", h.List)
		fr.Post("/import", h.Import)
		fr.Get("/{id}", h.Get)
	})
}
