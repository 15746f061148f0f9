package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/envmonitor/internal/reading"
)

// handleListReadings returns up to 20 readings, most recent date first.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := s.readings.ListRecent(r.Context())
	if err != nil {
		s.logServiceError(r, "listing readings", err)
		writeReadingError(w, err)
		return
	}
	if readings == nil {
		readings = []reading.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

// handleGetReading returns one reading. A negative id or "latest" returns
// the reading with the greatest date.
func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	lookup := reading.ParseLookup(chi.URLParam(r, "id"))

	rd, err := s.readings.Get(r.Context(), lookup)
	if err != nil {
		s.logServiceError(r, "getting reading", err)
		writeReadingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

// handleCreateReading stores a reading and broadcasts it to subscribers.
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	in, err := reading.Decode(r.Body)
	if err != nil {
		writeReadingError(w, err)
		return
	}

	created, err := s.readings.Create(r.Context(), in)
	if err != nil {
		s.logServiceError(r, "creating reading", err)
		writeReadingError(w, err)
		return
	}

	s.metrics.readingsCreated.Inc()
	w.Header().Set("Location", "/readings/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

// handleTime returns the server time as milliseconds since the Unix epoch.
func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(strconv.FormatInt(s.now().UnixMilli(), 10)))
}

// healthCheckTimeout bounds each dependency ping behind /health.
const healthCheckTimeout = 2 * time.Second

// Health status values.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnhealthy   = "unhealthy"
	healthUnavailable = "unavailable"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Error      string            `json:"error,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// handleHealth reports whether the reading store is reachable.
//
// The store decides the status code: 503 when it is down. Optional
// components (MQTT, InfluxDB) only mirror readings, so an outage there
// marks the service degraded but still answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: healthOK, Version: s.version}

	if len(s.components) > 0 {
		resp.Components = make(map[string]string, len(s.components))
		for name, checker := range s.components {
			if err := s.checkHealth(r.Context(), checker); err != nil {
				s.logger.Warn("component health check failed", "component", name, "error", err)
				resp.Components[name] = healthUnavailable
				resp.Status = healthDegraded
				continue
			}
			resp.Components[name] = healthOK
		}
	}

	if s.store != nil {
		if err := s.checkHealth(r.Context(), s.store); err != nil {
			s.logger.Warn("health check failed", "error", err)
			resp.Status = healthUnhealthy
			resp.Error = "reading store unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) checkHealth(ctx context.Context, checker HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return checker.HealthCheck(ctx)
}

// logServiceError logs unexpected failures. Client errors stay at debug.
func (s *Server) logServiceError(r *http.Request, op string, err error) {
	args := []any{"error", err, "path", r.URL.Path, "request_id", requestIDFrom(r.Context())}
	switch {
	case errors.Is(err, reading.ErrNotFound), errors.Is(err, reading.ErrInvalidReading):
		s.logger.Debug(op+" failed", args...)
	default:
		s.logger.Error(op+" failed", args...)
	}
}
