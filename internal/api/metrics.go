package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/envmonitor/internal/broadcast"
)

// metricsNamespace prefixes every exported metric name.
const metricsNamespace = "envmonitor"

// metrics holds the Prometheus collectors served on /metrics.
//
// Each Server owns its own registry so several servers (tests) can coexist
// in one process without duplicate registration panics.
type metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	readingsCreated prometheus.Counter
	handler         http.Handler
}

func newMetrics(hub *broadcast.Hub, ingest IngestStats) *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		readingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "readings_created_total",
			Help:      "Readings persisted through the HTTP API.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.readingsCreated,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Currently connected real-time subscribers.",
		}, func() float64 { return float64(hub.Count()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "broadcast",
			Name:      "published_total",
			Help:      "Readings published to the broadcast channel.",
		}, func() float64 { return float64(hub.Published()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Per-subscriber deliveries dropped because a queue was full or closed.",
		}, func() float64 { return float64(hub.Dropped()) }),
	)

	if ingest != nil {
		reg.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "accepted_total",
				Help:      "MQTT ingest payloads stored as readings.",
			}, func() float64 { return float64(ingest.Accepted()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ingest",
				Name:      "rejected_total",
				Help:      "MQTT ingest payloads dropped as invalid.",
			}, func() float64 { return float64(ingest.Rejected()) }),
		)
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	return m
}

func (m *metrics) observeRequest(method, route, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// handleMetrics serves the Prometheus exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.handler.ServeHTTP(w, r)
}
