package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carebridge/telemed-sync/internal/http/handlers"
	httpmiddleware "github.com/carebridge/telemed-sync/internal/http/middleware"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *handlers.AppointmentsHandler
	MetricsHandler      http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.AppointmentsHandler.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", cfg.AppointmentsHandler.List)
		r.Patch("/{id}", cfg.AppointmentsHandler.UpdateStatus)
	})
	r.Post("/sync", cfg.AppointmentsHandler.TriggerSync)

	return r
}
