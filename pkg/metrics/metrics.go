// Package metrics holds the Prometheus metrics exported by txnwatch.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ArionMiles/txnwatch/pkg/api"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	Messages       *prometheus.CounterVec
	IngestDuration prometheus.Histogram
	Events         *prometheus.CounterVec
	CapAlerts      *prometheus.CounterVec

	// Sink metrics
	SinkWrites *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg. A nil reg gets a fresh
// registry so that independent instances never collide.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnwatch_messages_total",
				Help: "Messages ingested by outcome",
			},
			[]string{"source", "outcome"},
		),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "txnwatch_ingest_duration_seconds",
			Help:    "Time to run one message through the pipeline",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnwatch_events_published_total",
				Help: "Events published by type",
			},
			[]string{"type"},
		),
		CapAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnwatch_cap_alerts_total",
				Help: "Cap alerts by severity",
			},
			[]string{"severity"},
		),

		SinkWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnwatch_sink_writes_total",
				Help: "Records written to egress sinks",
			},
			[]string{"sink", "status"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "txnwatch_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "txnwatch_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RegisterRuntime adds the Go runtime and process collectors.
func (m *Metrics) RegisterRuntime() {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvent counts a published envelope. It is meant to be subscribed to
// the event bus.
func (m *Metrics) ObserveEvent(_ context.Context, env *api.Envelope) {
	m.Events.WithLabelValues(string(env.Type)).Inc()
	if alert, ok := env.Event.(api.CapAlert); ok {
		m.CapAlerts.WithLabelValues(string(alert.Severity)).Inc()
	}
}
