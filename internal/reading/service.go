package reading

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultOperationTimeout bounds each repository call when none is configured.
const defaultOperationTimeout = 5 * time.Second

// Logger defines the logging interface used by the Service.
// This allows the service to work with any logger implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster fans a persisted reading out to live subscribers.
// Publish must not block on slow subscribers.
type Broadcaster interface {
	Publish(r Reading)
}

// Mirror receives a copy of every persisted reading (MQTT, InfluxDB).
// Mirror failures are logged and never fail the originating request.
type Mirror interface {
	MirrorReading(ctx context.Context, r Reading) error
}

// Service implements the read and create operations on readings.
//
// Create persists first, then broadcasts, then mirrors. A reading is never
// broadcast unless the store accepted it.
//
// Thread Safety: All methods are safe for concurrent use.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
	limit       int
	opTimeout   time.Duration
	logger      Logger

	mu      sync.RWMutex
	mirrors []Mirror
	wg      sync.WaitGroup
}

// NewService creates a Service over repo. broadcaster may be nil.
func NewService(repo Repository, broadcaster Broadcaster) *Service {
	return &Service{
		repo:        repo,
		broadcaster: broadcaster,
		limit:       DefaultListLimit,
		opTimeout:   defaultOperationTimeout,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetOperationTimeout sets the per-call repository timeout. Zero or
// negative values restore the default.
func (s *Service) SetOperationTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultOperationTimeout
	}
	s.opTimeout = d
}

// AddMirror registers a mirror that receives every persisted reading.
func (s *Service) AddMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors = append(s.mirrors, m)
}

// ListRecent returns up to DefaultListLimit readings, newest date first.
func (s *Service) ListRecent(ctx context.Context) ([]Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	readings, err := s.repo.ListRecent(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent readings: %w", err)
	}
	if len(readings) > s.limit {
		readings = readings[:s.limit]
	}
	return readings, nil
}

// Get resolves lookup to a single reading.
func (s *Service) Get(ctx context.Context, lookup Lookup) (*Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var (
		r   *Reading
		err error
	)
	switch lookup.Kind {
	case LookupLatest:
		r, err = s.repo.GetLatest(ctx)
	default:
		r, err = s.repo.GetByID(ctx, lookup.ID)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create validates, persists and broadcasts a new reading.
// Any client-supplied ID is discarded; the store assigns one.
func (s *Service) Create(ctx context.Context, r Reading) (*Reading, error) {
	if err := Validate(&r); err != nil {
		return nil, err
	}
	r.ID = ""

	insertCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := s.repo.Insert(insertCtx, &r); err != nil {
		s.logger.Error("failed to store reading",
			"sensor_id", r.SensorID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Debug("reading stored",
		"id", r.ID.String(),
		"sensor_id", r.SensorID,
		"date", r.Date,
	)

	if s.broadcaster != nil {
		s.broadcaster.Publish(r)
	}

	s.mirror(r)

	return &r, nil
}

// Wait blocks until in-flight mirror deliveries complete.
func (s *Service) Wait() {
	s.wg.Wait()
}

// mirror delivers r to each registered mirror in the background.
func (s *Service) mirror(r Reading) {
	s.mu.RLock()
	mirrors := make([]Mirror, len(s.mirrors))
	copy(mirrors, s.mirrors)
	s.mu.RUnlock()

	for _, m := range mirrors {
		s.wg.Add(1)
		go func(m Mirror) {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
			defer cancel()
			if err := m.MirrorReading(ctx, r); err != nil {
				s.logger.Warn("failed to mirror reading",
					"id", r.ID.String(),
					"error", err,
				)
			}
		}(m)
	}
}
