// Package metrics exposes the sync engine's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storelens"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on registration. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	syncRuns         *prometheus.CounterVec
	syncRecords      *prometheus.CounterVec
	syncDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Finished sync runs by entity kind and terminal status.",
			},
			[]string{"entity", "status"},
		),
		syncRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_records_total",
				Help:      "Records persisted by the synchronizer.",
			},
			[]string{"entity"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Wall time of a single entity sync.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"entity"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests sent to the storefront API by endpoint and status code.",
			},
			[]string{"endpoint", "code"},
		),
	}

	m.registry.MustRegister(m.syncRuns, m.syncRecords, m.syncDuration, m.upstreamRequests)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveSyncRun(entity, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(entity, status).Inc()
	m.syncDuration.WithLabelValues(entity).Observe(elapsed.Seconds())
}

func (m *Metrics) AddSyncedRecords(entity string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.syncRecords.WithLabelValues(entity).Add(float64(n))
}

// ObserveUpstream records one storefront API call. A code of 0 means the
// request never produced a response.
func (m *Metrics) ObserveUpstream(endpoint string, code int) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.upstreamRequests.WithLabelValues(endpoint, label).Inc()
}
