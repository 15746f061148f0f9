// Package reading implements the environment reading domain.
//
// A Reading is one measurement reported by a sensor: the sensor's integer id,
// a numeric value and a client-supplied date string. Readings are immutable
// once stored and are never deleted by this service.
//
// The package provides:
//   - Reading, ID and Lookup types
//   - Repository with MongoDB and SQLite implementations
//   - Service, which validates input, persists it and fans it out to
//     live subscribers and mirrors (MQTT, InfluxDB)
//
// Ordering:
//
// "Latest" and "recent" are defined by the date string compared
// lexicographically, not by insertion order. ISO-8601 dates in a single
// zone sort correctly; other formats sort as plain strings.
package reading
