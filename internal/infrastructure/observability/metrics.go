package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry            *prometheus.Registry
	ActiveSessions      prometheus.Gauge
	FramesTotal         prometheus.Counter
	IngestEventsTotal   *prometheus.CounterVec
	ProtocolErrorsTotal prometheus.Counter
	InsightsTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jankkiller",
			Name:      "active_sessions",
			Help:      "Number of screen sessions still open",
		}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jankkiller",
			Name:      "frames_total",
			Help:      "Total frame metrics received from the stream",
		}),
		IngestEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jankkiller",
			Name:      "ingest_events_total",
			Help:      "Total stream envelopes received by kind",
		}, []string{"kind"}),
		ProtocolErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jankkiller",
			Name:      "protocol_errors_total",
			Help:      "Total end events without a matching session",
		}),
		InsightsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jankkiller",
			Name:      "insights_total",
			Help:      "Total insights produced by type",
		}, []string{"type"}),
	}
	r.MustRegister(m.ActiveSessions, m.FramesTotal, m.IngestEventsTotal, m.ProtocolErrorsTotal, m.InsightsTotal)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
