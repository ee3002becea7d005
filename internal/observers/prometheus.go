package observers

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/optrun/internal/engine"
)

// Prometheus exports run progress as gauges: iteration, current and
// best cost, and per-operation evaluation counts. All metrics carry a
// run label so several runs can share one registry.
type Prometheus struct {
	iteration prometheus.Gauge
	cost      prometheus.Gauge
	bestCost  prometheus.Gauge
	evals     *prometheus.GaugeVec
}

// NewPrometheus creates the metrics for one run and registers them
// with reg. Registering the same run ID twice fails.
func NewPrometheus(reg prometheus.Registerer, runID string) (*Prometheus, error) {
	labels := prometheus.Labels{"run": runID}
	p := &Prometheus{
		iteration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "optrun",
			Name:        "iteration",
			Help:        "Completed iterations.",
			ConstLabels: labels,
		}),
		cost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "optrun",
			Name:        "cost",
			Help:        "Current objective value.",
			ConstLabels: labels,
		}),
		bestCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "optrun",
			Name:        "best_cost",
			Help:        "Best objective value found so far.",
			ConstLabels: labels,
		}),
		evals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "optrun",
			Name:        "evaluations",
			Help:        "Objective evaluations by operation.",
			ConstLabels: labels,
		}, []string{"op"}),
	}

	for _, c := range p.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.iteration, p.cost, p.bestCost, p.evals}
}

// Unregister removes the run's metrics from reg, for callers that
// drop runs from a shared registry.
func (p *Prometheus) Unregister(reg prometheus.Registerer) {
	for _, c := range p.collectors() {
		reg.Unregister(c)
	}
}

// Name identifies the observer in logs.
func (p *Prometheus) Name() string { return "prometheus" }

func (p *Prometheus) set(v *engine.View) {
	p.iteration.Set(float64(v.Iter))
	p.cost.Set(v.Cost)
	p.bestCost.Set(v.BestCost)
	for op, n := range v.FuncCounts {
		p.evals.WithLabelValues(op).Set(float64(n))
	}
}

// ObserveInit publishes the starting point.
func (p *Prometheus) ObserveInit(solver string, v *engine.View, kv engine.KV) error {
	p.set(v)
	return nil
}

// ObserveIter publishes the current iteration.
func (p *Prometheus) ObserveIter(v *engine.View, kv engine.KV) error {
	p.set(v)
	return nil
}

// ObserveFinal publishes the terminal snapshot.
func (p *Prometheus) ObserveFinal(v *engine.View) error {
	p.set(v)
	return nil
}
