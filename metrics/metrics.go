// Package metrics holds the Prometheus collectors exported on /metrics.
// A nil *Registry is valid and records nothing, which keeps tests and CLI
// commands free of collector setup.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all screener metrics
type Registry struct {
	RefreshTotal     *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	QueueDepth       prometheus.Gauge
	ProviderRequests *prometheus.CounterVec
	SnapshotCache    *prometheus.CounterVec
	WSClients        prometheus.Gauge
}

// NewRegistry creates the collectors and registers them with reg
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_refresh_total",
				Help: "Refresh jobs by result",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screener_refresh_duration_seconds",
				Help:    "Duration of refresh jobs in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_queue_depth",
				Help: "Jobs waiting in the refresh queue",
			},
		),
		ProviderRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_provider_requests_total",
				Help: "Market data provider requests by result",
			},
			[]string{"result"},
		),
		SnapshotCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screener_snapshot_cache_total",
				Help: "Snapshot cache lookups by result",
			},
			[]string{"result"},
		),
		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "screener_ws_clients",
				Help: "Connected websocket clients",
			},
		),
	}

	reg.MustRegister(
		r.RefreshTotal,
		r.RefreshDuration,
		r.QueueDepth,
		r.ProviderRequests,
		r.SnapshotCache,
		r.WSClients,
	)
	return r
}

func (r *Registry) ObserveRefresh(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.RefreshTotal.WithLabelValues(result).Inc()
	r.RefreshDuration.Observe(d.Seconds())
}

func (r *Registry) SetQueueDepth(n int) {
	if r == nil {
		return
	}
	r.QueueDepth.Set(float64(n))
}

func (r *Registry) ProviderRequest(result string) {
	if r == nil {
		return
	}
	r.ProviderRequests.WithLabelValues(result).Inc()
}

func (r *Registry) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.SnapshotCache.WithLabelValues(result).Inc()
}

func (r *Registry) SetWSClients(n int) {
	if r == nil {
		return
	}
	r.WSClients.Set(float64(n))
}
