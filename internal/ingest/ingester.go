package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/envmonitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/envmonitor/internal/reading"
)

// createTimeout bounds a single Create triggered by an MQTT message.
const createTimeout = 10 * time.Second

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Creator persists and broadcasts a new reading. Satisfied by *reading.Service.
type Creator interface {
	Create(ctx context.Context, r reading.Reading) (*reading.Reading, error)
}

// Subscriber is the MQTT surface the Ingester needs. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Ingester turns messages on the ingest topic into stored readings.
//
// Payloads use the same JSON as POST /readings, with field names matched
// case-insensitively. Invalid payloads are logged, counted and dropped.
type Ingester struct {
	sub     Subscriber
	creator Creator
	topic   string
	qos     byte
	logger  Logger

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewIngester creates an Ingester for topic. Call Start to subscribe.
func NewIngester(sub Subscriber, creator Creator, topic string, qos byte) *Ingester {
	return &Ingester{
		sub:     sub,
		creator: creator,
		topic:   topic,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for rejected payloads.
func (i *Ingester) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	i.logger = logger
}

// Start subscribes to the ingest topic.
func (i *Ingester) Start() error {
	if err := i.sub.Subscribe(i.topic, i.qos, i.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", i.topic, err)
	}
	return nil
}

// Stop unsubscribes from the ingest topic.
func (i *Ingester) Stop() error {
	if err := i.sub.Unsubscribe(i.topic); err != nil && !errors.Is(err, mqtt.ErrNotConnected) {
		return fmt.Errorf("unsubscribing from %s: %w", i.topic, err)
	}
	return nil
}

// Accepted returns how many messages were stored as readings.
func (i *Ingester) Accepted() uint64 { return i.accepted.Load() }

// Rejected returns how many messages were dropped as invalid.
func (i *Ingester) Rejected() uint64 { return i.rejected.Load() }

// handle is the MQTT message handler. Invalid payloads return nil so the
// client does not log them a second time; store failures are returned.
func (i *Ingester) handle(topic string, payload []byte) error {
	r, err := reading.Decode(bytes.NewReader(payload))
	if err != nil {
		i.reject(topic, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), createTimeout)
	defer cancel()

	created, err := i.creator.Create(ctx, r)
	if err != nil {
		if errors.Is(err, reading.ErrInvalidReading) {
			i.reject(topic, err)
			return nil
		}
		return fmt.Errorf("storing ingested reading: %w", err)
	}

	i.accepted.Add(1)
	i.logger.Debug("reading ingested",
		"topic", topic,
		"id", created.ID.String(),
		"sensor_id", created.SensorID,
	)
	return nil
}

func (i *Ingester) reject(topic string, err error) {
	i.rejected.Add(1)
	i.logger.Warn("rejected ingest payload", "topic", topic, "error", err)
}
