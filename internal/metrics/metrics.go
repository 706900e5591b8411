package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesAccepted prometheus.Counter
	MessagesRejected *prometheus.CounterVec
	AutoModBans      prometheus.Counter
	Commands         *prometheus.CounterVec
	PersistFailures  *prometheus.CounterVec
	Sessions         prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		MessagesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modchat_messages_accepted_total",
			Help: "Chat messages appended to history and broadcast",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modchat_messages_rejected_total",
			Help: "Inbound messages dropped by the pipeline",
		}, []string{"reason"}),
		AutoModBans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modchat_automod_bans_total",
			Help: "Participants banned for using a banned word",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modchat_commands_total",
			Help: "Slash commands processed",
		}, []string{"command"}),
		PersistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modchat_persist_failures_total",
			Help: "Durable writes that failed after the in-memory state changed",
		}, []string{"collection"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modchat_sessions",
			Help: "Identified live connections",
		}),
	}

	reg.MustRegister(
		m.MessagesAccepted,
		m.MessagesRejected,
		m.AutoModBans,
		m.Commands,
		m.PersistFailures,
		m.Sessions,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Accepted() {
	if m != nil {
		m.MessagesAccepted.Inc()
	}
}

func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.MessagesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) AutoModBan() {
	if m != nil {
		m.AutoModBans.Inc()
	}
}

func (m *Metrics) Command(name string) {
	if m != nil {
		m.Commands.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) PersistFailure(collection string) {
	if m != nil {
		m.PersistFailures.WithLabelValues(collection).Inc()
	}
}

func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.Sessions.Set(float64(n))
	}
}
