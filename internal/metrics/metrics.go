// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server's collectors around a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ConsistencyErrors prometheus.Counter
	RosterConflicts   prometheus.Counter
	EventsDropped     prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "splitsquad_rpc_requests_total",
			Help: "RPCs handled, by procedure and result code.",
		}, []string{"procedure", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitsquad_rpc_duration_seconds",
			Help:    "RPC latency by procedure.",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure"}),
		ConsistencyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitsquad_settlement_consistency_errors_total",
			Help: "Settlement plans aborted because balances left a residual.",
		}),
		RosterConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitsquad_roster_conflicts_total",
			Help: "Snapshot writes that lost an optimistic concurrency race.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "splitsquad_events_dropped_total",
			Help: "Group events that could not be published.",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ConsistencyErrors,
		m.RosterConflicts,
		m.EventsDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
