// Package metrics exposes Prometheus instrumentation for the timeline
// service: transition and repair counters plus a live-timeline gauge that is
// computed at scrape time.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all registered collectors.
type Metrics struct {
	registry *prometheus.Registry

	PhaseTransitions  *prometheus.CounterVec
	StateRepairs      prometheus.Counter
	DurationFallbacks prometheus.Counter
	OperatorCommands  *prometheus.CounterVec
	WSConnections     prometheus.Gauge
}

// New creates and registers all collectors. liveCount is called at scrape
// time to report the number of currently live timelines; pass nil to skip
// the gauge.
func New(liveCount func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showtime_phase_transitions_total",
			Help: "Phase transitions, labeled by the phase entered.",
		}, []string{"phase"}),
		StateRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showtime_state_repairs_total",
			Help: "Timeline resolutions that had to repair inconsistent state.",
		}),
		DurationFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showtime_duration_fallbacks_total",
			Help: "Performance slots scheduled with the fallback duration.",
		}),
		OperatorCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showtime_operator_commands_total",
			Help: "Operator commands processed, labeled by command and outcome.",
		}, []string{"command", "outcome"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showtime_websocket_connections",
			Help: "Currently open websocket connections.",
		}),
	}

	reg.MustRegister(m.PhaseTransitions, m.StateRepairs, m.DurationFallbacks,
		m.OperatorCommands, m.WSConnections)

	if liveCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "showtime_live_timelines",
			Help: "Timelines currently marked live.",
		}, liveCount))
	}

	return m
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
