package ingest

import (
	"context"

	"github.com/nerrad567/envmonitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/envmonitor/internal/reading"
)

// JSONPublisher publishes a JSON-encoded value. Satisfied by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any) error
}

// MQTTMirror republishes every stored reading on a per-sensor topic.
type MQTTMirror struct {
	pub    JSONPublisher
	topics mqtt.Topics
}

// NewMQTTMirror creates a mirror publishing under topics.Created.
func NewMQTTMirror(pub JSONPublisher, topics mqtt.Topics) *MQTTMirror {
	return &MQTTMirror{pub: pub, topics: topics}
}

// MirrorReading publishes r to envmonitor/readings/created/{sensorId}.
func (m *MQTTMirror) MirrorReading(_ context.Context, r reading.Reading) error {
	return m.pub.PublishJSON(m.topics.Created(r.SensorID), r)
}

// ReadingWriter queues a reading for a time-series store. Satisfied by
// *influxdb.Client.
type ReadingWriter interface {
	WriteReading(sensorID int, value float64, date string) error
}

// InfluxMirror writes every stored reading as a time-series point.
type InfluxMirror struct {
	w ReadingWriter
}

// NewInfluxMirror creates a mirror over w.
func NewInfluxMirror(w ReadingWriter) *InfluxMirror {
	return &InfluxMirror{w: w}
}

// MirrorReading queues r. The write itself happens asynchronously.
func (m *InfluxMirror) MirrorReading(_ context.Context, r reading.Reading) error {
	return m.w.WriteReading(r.SensorID, r.Value, r.Date)
}
