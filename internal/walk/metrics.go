package walk

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/mutree/internal/mutree"
)

const metricsNamespace = "mutree"

// Outcome labels for the moves counter.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// Metrics counts walk activity on a private registry, so several walks (and
// tests) never collide on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	moves        *prometheus.CounterVec
	prunedLosses prometheus.Counter
	iterations   prometheus.Counter
	treeNodes    *prometheus.GaugeVec
}

// NewMetrics creates and registers the walk collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		moves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "walk",
				Name:      "moves_total",
				Help:      "Structural moves attempted, by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		prunedLosses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "walk",
			Name:      "pruned_losses_total",
			Help:      "Loss nodes removed after a move left them without an active gain",
		}),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "walk",
			Name:      "iterations_total",
			Help:      "Completed walk iterations across all particles",
		}),
		treeNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "walk",
				Name:      "tree_nodes",
				Help:      "Current node count of each particle's tree",
			},
			[]string{"particle"},
		),
	}
	m.Registry.MustRegister(m.moves, m.prunedLosses, m.iterations, m.treeNodes)
	return m
}

func (m *Metrics) observeMove(op mutree.Operation, applied bool) {
	if m == nil {
		return
	}
	outcome := OutcomeRejected
	if applied {
		outcome = OutcomeApplied
	}
	m.moves.WithLabelValues(op.String(), outcome).Inc()
}

func (m *Metrics) observePruned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.prunedLosses.Add(float64(n))
}

func (m *Metrics) observeIteration() {
	if m == nil {
		return
	}
	m.iterations.Inc()
}

func (m *Metrics) observeTree(particle string, nodes int) {
	if m == nil {
		return
	}
	m.treeNodes.WithLabelValues(particle).Set(float64(nodes))
}

// WriteTextfile dumps the current metrics in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
