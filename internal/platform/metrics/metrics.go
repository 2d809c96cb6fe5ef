// Package metrics exposes Prometheus instrumentation for the queue core and
// the realtime channel.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the server updates at runtime.
type Metrics struct {
	registry *prometheus.Registry

	QueueDepth       *prometheus.GaugeVec
	ConnectedClients prometheus.Gauge
	PushesDelivered  *prometheus.CounterVec
	PushesDropped    prometheus.Counter
	TokensIssued     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clinicdesk_queue_depth",
			Help: "Number of waiting tokens per doctor queue.",
		}, []string{"doctor_id"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinicdesk_realtime_clients",
			Help: "Number of connected realtime clients.",
		}),
		PushesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicdesk_pushes_delivered_total",
			Help: "Realtime snapshots delivered, by subscription scope kind.",
		}, []string{"scope"}),
		PushesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinicdesk_pushes_dropped_total",
			Help: "Realtime snapshots dropped due to slow or closed subscribers.",
		}),
		TokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinicdesk_tokens_issued_total",
			Help: "Queue tokens issued.",
		}),
	}

	m.registry.MustRegister(
		m.QueueDepth,
		m.ConnectedClients,
		m.PushesDelivered,
		m.PushesDropped,
		m.TokensIssued,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
