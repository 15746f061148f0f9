package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/envmonitor/internal/infrastructure/config"
)

// TopicPrefix is the root of every topic this service owns.
const TopicPrefix = "envmonitor"

// Default topics, used when the corresponding config value is empty.
const (
	DefaultIngestTopic   = TopicPrefix + "/readings/ingest"
	DefaultCreatedPrefix = TopicPrefix + "/readings/created"
	systemStatusTopic    = TopicPrefix + "/system/status"
)

// Topics builds the MQTT topics used for reading ingest and mirroring.
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	topics.Created(3) // "envmonitor/readings/created/3"
type Topics struct {
	ingest        string
	createdPrefix string
}

// NewTopics applies defaults to cfg and returns the topic builder.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	t := Topics{
		ingest:        cfg.Ingest,
		createdPrefix: strings.TrimSuffix(cfg.CreatedPrefix, "/"),
	}
	if t.ingest == "" {
		t.ingest = DefaultIngestTopic
	}
	if t.createdPrefix == "" {
		t.createdPrefix = DefaultCreatedPrefix
	}
	return t
}

// Ingest returns the topic base stations publish new readings to.
func (t Topics) Ingest() string {
	return t.ingest
}

// Created returns the mirror topic for readings from one sensor.
//
// Example: envmonitor/readings/created/3
func (t Topics) Created(sensorID int) string {
	return fmt.Sprintf("%s/%d", t.createdPrefix, sensorID)
}

// AllCreated matches every mirrored reading.
func (t Topics) AllCreated() string {
	return t.createdPrefix + "/+"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return systemStatusTopic
}
