// Package api implements the HTTP REST API and WebSocket server for the
// environment monitor.
//
// This package provides:
//   - REST endpoints to list, fetch and create sensor readings
//   - A WebSocket endpoint pushing every newly created reading in real time
//   - A time endpoint for base stations without a clock source
//   - Health and Prometheus metrics endpoints
//   - Middleware stack (request ID, logging, metrics, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers call the reading service, which persists first and only then
// publishes to the broadcast hub. Each WebSocket connection owns one hub
// subscription for its lifetime.
//
// The reading and time routes are also served under /api for base stations
// configured with that prefix.
package api
