// Package telemetry exposes prometheus counters for the execution engine.
// Everything is optional: the engine runs fine with a nil *Metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	NodesExecuted   prometheus.Counter
	Mutations       *prometheus.CounterVec
	RouterDecisions *prometheus.CounterVec
	Reflections     *prometheus.CounterVec
	Runs            *prometheus.CounterVec
}

// New registers the engine counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		NodesExecuted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "reflow",
			Name:      "nodes_executed_total",
			Help:      "Nodes executed and merged across all runs.",
		}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflow",
			Name:      "mutations_total",
			Help:      "Structural mutations applied, by kind.",
		}, []string{"kind"}),
		RouterDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflow",
			Name:      "router_decisions_total",
			Help:      "Uncertainty router decisions, by kind.",
		}, []string{"kind"}),
		Reflections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflow",
			Name:      "reflections_total",
			Help:      "Reflection policy results, by outcome.",
		}, []string{"outcome"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reflow",
			Name:      "runs_total",
			Help:      "Completed runs, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) NodeExecuted() {
	if m != nil {
		m.NodesExecuted.Inc()
	}
}

func (m *Metrics) MutationApplied(kind string) {
	if m != nil {
		m.Mutations.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RouterDecided(kind string) {
	if m != nil {
		m.RouterDecisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Reflected(outcome string) {
	if m != nil {
		m.Reflections.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RunFinished(outcome string) {
	if m != nil {
		m.Runs.WithLabelValues(outcome).Inc()
	}
}
