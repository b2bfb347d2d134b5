package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "redeyes"

// Metrics holds the engine's Prometheus instruments. A nil *Metrics records nothing.
type Metrics struct {
	// Initializations counts Initialize calls that created a village.
	Initializations prometheus.Counter

	// DaysAdvanced counts committed simulation days.
	DaysAdvanced prometheus.Counter

	// Decisions counts strategy decisions.
	// Labels: strategy, decision (leave, stay)
	Decisions *prometheus.CounterVec

	// Departures counts villagers leaving.
	// Labels: eye_color (RED, BLUE)
	Departures *prometheus.CounterVec

	// Fallbacks counts delegated decisions replaced by perfect induction.
	Fallbacks prometheus.Counter

	// RunsFinished counts puzzles that reached the finished state.
	// Labels: result (verified, diverged)
	RunsFinished *prometheus.CounterVec
}

// NewMetrics registers the engine metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Initializations: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "initializations_total",
			Help:      "Villages created.",
		}),
		DaysAdvanced: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "days_advanced_total",
			Help:      "Simulation days committed.",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decisions_total",
			Help:      "Villager decisions by strategy and outcome.",
		}, []string{"strategy", "decision"}),
		Departures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "departures_total",
			Help:      "Villagers who left, by eye color.",
		}, []string{"eye_color"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "delegated_fallbacks_total",
			Help:      "Delegated decisions replaced by perfect induction.",
		}),
		RunsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_finished_total",
			Help:      "Puzzles finished, by verification result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) initialized() {
	if m == nil {
		return
	}
	m.Initializations.Inc()
}

func (m *Metrics) day(decisions []decided) {
	if m == nil {
		return
	}
	m.DaysAdvanced.Inc()
	for _, d := range decisions {
		word := "stay"
		if d.Leave {
			word = "leave"
			m.Departures.WithLabelValues(d.villager.Eyes.String()).Inc()
		}
		m.Decisions.WithLabelValues(d.Strategy, word).Inc()
		if d.Fallback != "" {
			m.Fallbacks.Inc()
		}
	}
}

func (m *Metrics) finished(passed bool) {
	if m == nil {
		return
	}
	result := "diverged"
	if passed {
		result = "verified"
	}
	m.RunsFinished.WithLabelValues(result).Inc()
}
