package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sets up chi router, middlewares and defines all api endpoints
func (s *Server) routes() {
	s.r = chi.NewRouter()

	// Read-only API, any origin may query it
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)
	s.r.Use(middleware.Timeout(60 * time.Second))

	s.r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	s.r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/health", s.handleHealthGet)

		// messages
		r.Get("/messages", s.handleMessagesGet)

		// fetcher resume points
		r.Get("/checkpoints", s.handleCheckpointsGet)

		// upgrade_accounts batches
		r.Get("/upgrades", s.handleUpgradesGet)
	})
}

func (s *Server) handleHealthGet(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{"health_status": "degraded", "error": err.Error()})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"health_status": "online"})
}
