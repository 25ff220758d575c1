package registry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	kindScalar = "scalar"
	kindBig    = "big"
	kindSubsys = "subsystem"
)

// Metrics holds the registry's Prometheus collectors. Each Metrics owns its
// own prometheus.Registry so several registries can live in one process.
type Metrics struct {
	reg *prometheus.Registry

	registrations *prometheus.CounterVec
	failures      *prometheus.CounterVec
	loads         prometheus.Counter
	ticks         *prometheus.CounterVec
	callbacks     *prometheus.CounterVec
	liveHandles   *prometheus.GaugeVec
}

// NewMetrics creates and registers the registry's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplechan",
			Name:      "registrations_total",
			Help:      "Successful channel registrations, including repeated ones.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplechan",
			Name:      "registration_failures_total",
			Help:      "Failed channel registrations.",
		}, []string{"kind"}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "simplechan",
			Name:      "subsystem_loads_total",
			Help:      "Subsystems instantiated from their descriptions.",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplechan",
			Name:      "ticks_total",
			Help:      "Ticks dispatched per subsystem.",
		}, []string{"subsystem"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "simplechan",
			Name:      "callbacks_total",
			Help:      "Channel callbacks invoked.",
		}, []string{"kind"}),
		liveHandles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "simplechan",
			Name:      "live_handles",
			Help:      "Handles currently in use.",
		}, []string{"table"}),
	}
	m.reg.MustRegister(m.registrations, m.failures, m.loads, m.ticks, m.callbacks, m.liveHandles)
	return m
}

// Gatherer exposes the collectors, e.g. to promhttp.HandlerFor.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

func (m *Metrics) registered(kind string) {
	m.registrations.WithLabelValues(kind).Inc()
}

func (m *Metrics) failed(kind string) {
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) loaded() {
	m.loads.Inc()
}

func (m *Metrics) ticked(subsystem string) {
	m.ticks.WithLabelValues(subsystem).Inc()
}

func (m *Metrics) calledBack(kind string) {
	m.callbacks.WithLabelValues(kind).Inc()
}

func (m *Metrics) live(table string, n int) {
	m.liveHandles.WithLabelValues(table).Set(float64(n))
}
