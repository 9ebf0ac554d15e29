// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-api/handlers"
	"github.com/spherical-ai/spherical/libs/figure-service/cmd/figures-api/middleware"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/events"
	"github.com/spherical-ai/spherical/libs/figure-service/internal/observability"
)

// RouterDeps are the components the routes dispatch to.
type RouterDeps struct {
	Extractor  handlers.Extractor
	Visualizer handlers.Visualizer
	History    handlers.HistoryReader
	PingDB     func(context.Context) error
	Events     events.Subscriber
}

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	ServiceName    string
	JarPath        string
	MaxBodyBytes   int64
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	HistoryLimit   int
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, deps RouterDeps, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	health := handlers.NewHealthHandler(cfg.ServiceName, cfg.JarPath, deps.PingDB)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	extraction := handlers.NewExtractionHandler(logger, deps.Extractor, deps.Visualizer, cfg.MaxBodyBytes)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
		r.Post("/extract", extraction.Extract)
		r.Post("/visualize", extraction.Visualize)
	})

	hist := handlers.NewHistoryHandler(logger, deps.History, cfg.HistoryLimit)
	r.Route("/history", func(r chi.Router) {
		r.Get("/", hist.List)
		r.Get("/{batchId}", hist.Get)
	})

	r.Get("/events", handlers.NewEventsHandler(logger, deps.Events).Stream)

	return r
}
