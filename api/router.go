// Package api is the HTTP glue between the logging core and a dashboard or
// operator tooling. The host application mounts the router; authentication
// and the UI itself stay on the host's side.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/simorgh/advanced-logger/logger"
	"github.com/simorgh/advanced-logger/retention"
)

// NewRouter creates and configures a chi router over the logging service.
func NewRouter(svc *logger.Service, cleaner *retention.Cleaner) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(RequestLogger(svc))

	h := NewLogHandler(svc, cleaner)

	r.Route("/api", func(r chi.Router) {
		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.List)
			r.Delete("/", h.Clear)
			r.Get("/stats", h.Stats)
			r.Get("/export", h.Export)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/resolve", h.Resolve)
				r.Post("/unresolve", h.Unresolve)
			})
		})
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/stats", h.AlertStats)
			r.Post("/test", h.TestChannels)
		})
		r.Post("/retention/cleanup", h.Cleanup)
	})

	return r
}
