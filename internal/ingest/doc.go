// Package ingest connects readings to the MQTT bus and InfluxDB.
//
// Ingester subscribes to the ingest topic so base stations can report over
// MQTT instead of HTTP. Each payload goes through reading.Service.Create,
// so it is validated, stored and broadcast exactly like a POST.
//
// MQTTMirror and InfluxMirror implement reading.Mirror and receive every
// stored reading regardless of how it arrived.
package ingest
