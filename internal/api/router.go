package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get(s.wsCfg.Path, s.handleWebSocket)

	s.mountReadingRoutes(r)

	// Field base stations address the same endpoints under /api.
	r.Route("/api", s.mountReadingRoutes)

	return r
}

func (s *Server) mountReadingRoutes(r chi.Router) {
	r.Route("/readings", func(r chi.Router) {
		r.Get("/", s.handleListReadings)
		r.Post("/", s.handleCreateReading)
		r.Get("/{id}", s.handleGetReading)
	})
	r.Get("/time", s.handleTime)
}
