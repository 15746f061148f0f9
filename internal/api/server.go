package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/envmonitor/internal/broadcast"
	"github.com/nerrad567/envmonitor/internal/infrastructure/config"
	"github.com/nerrad567/envmonitor/internal/infrastructure/logging"
	"github.com/nerrad567/envmonitor/internal/reading"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ReadingService is the reading domain as seen by the HTTP handlers.
// Satisfied by *reading.Service.
type ReadingService interface {
	ListRecent(ctx context.Context) ([]reading.Reading, error)
	Get(ctx context.Context, lookup reading.Lookup) (*reading.Reading, error)
	Create(ctx context.Context, r reading.Reading) (*reading.Reading, error)
}

// HealthChecker is implemented by the store clients (MongoDB, SQLite).
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// IngestStats exposes MQTT ingest counters for /metrics.
// Satisfied by *ingest.Ingester.
type IngestStats interface {
	Accepted() uint64
	Rejected() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Readings ReadingService
	Hub      *broadcast.Hub
	Store    HealthChecker // optional; /health reports ok without it
	Ingest   IngestStats   // optional; adds ingest counters to /metrics
	Clock    func() time.Time
	Version  string

	// Components are optional mirror dependencies reported by /health.
	// A failing component degrades the status but never fails the check.
	Components map[string]HealthChecker
}

// Server is the HTTP API server.
//
// It serves the readings endpoints, the real-time WebSocket channel,
// the time endpoint, health and Prometheus metrics.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	readings   ReadingService
	hub        *broadcast.Hub
	store      HealthChecker
	components map[string]HealthChecker // read-only after New
	now        func() time.Time
	version    string
	metrics    *metrics

	handler http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not listening until Start is called; Handler is usable at once.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Readings == nil {
		return nil, errors.New("reading service is required")
	}
	if deps.Hub == nil {
		return nil, errors.New("broadcast hub is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger.With("component", "api"),
		readings:   deps.Readings,
		hub:        deps.Hub,
		store:      deps.Store,
		components: make(map[string]HealthChecker, len(deps.Components)),
		now:        deps.Clock,
		version:    deps.Version,
	}
	for name, checker := range deps.Components {
		if checker != nil {
			s.components[name] = checker
		}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.wsCfg.Path == "" {
		s.wsCfg.Path = defaultWSPath
	}

	s.metrics = newMetrics(deps.Hub, deps.Ingest)
	s.handler = s.buildRouter()

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in a background goroutine.
// It returns an error immediately if the address cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete. WebSocket
// connections are hijacked and end when the hub closes their subscriptions.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
