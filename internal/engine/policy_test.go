package engine

import (
	"testing"
	"time"
)

// saturatedState satisfies every limit of the policy under test, so
// knocking limits out one by one exposes the priority order.
func saturatedState() *StateCommon {
	c := NewStateCommon()
	c.Iter = 50
	c.LastBestIter = 0
	c.SetCost(0)
	c.Elapsed = time.Hour
	c.FuncCounts = map[string]uint64{OpCost: 100, OpGradient: 100, OpHessian: 100}
	return &c
}

func TestPolicyCheck_PriorityOrder(t *testing.T) {
	pol := Policy{
		MaxIters:     50,
		MaxCostEvals: 100,
		MaxGradEvals: 100,
		MaxHessEvals: 100,
		MaxDuration:  time.Minute,
		TargetCost:   f64(0.5),
		TargetTol:    1,
		Patience:     10,
	}
	c := saturatedState()

	steps := []struct {
		disable func()
		want    TerminationReason
	}{
		{func() {}, MaxIterationsReached},
		{func() { pol.MaxIters = 0 }, MaxEvaluationsReached},
		{func() { pol.MaxCostEvals, pol.MaxGradEvals, pol.MaxHessEvals = 0, 0, 0 }, TimedOut},
		{func() { pol.MaxDuration = 0 }, TargetCostReached},
		{func() { pol.TargetCost = nil }, TargetToleranceReached},
		{func() { pol.TargetTol = 0 }, NoImprovement},
		{func() { pol.Patience = 0 }, ""},
	}
	for _, step := range steps {
		step.disable()
		if got := pol.Check(c); got != step.want {
			t.Fatalf("Expected %q, got %q with policy %+v", step.want, got, pol)
		}
	}
}

func TestPolicyCheck_ZeroPolicyNeverStops(t *testing.T) {
	if got := DefaultPolicy().Check(saturatedState()); got != "" {
		t.Errorf("Zero policy must never stop a run, got %q", got)
	}
}

func TestPolicyCheck_EvaluationBudgets(t *testing.T) {
	c := NewStateCommon()
	c.SetCost(10)
	c.FuncCounts = map[string]uint64{OpCost: 99, OpGradient: 12}

	pol := Policy{MaxCostEvals: 100}
	if got := pol.Check(&c); got != "" {
		t.Errorf("Budget not reached yet, got %q", got)
	}
	c.FuncCounts[OpCost] = 100
	if got := pol.Check(&c); got != MaxEvaluationsReached {
		t.Errorf("Expected max_evaluations_reached, got %q", got)
	}

	pol = Policy{MaxGradEvals: 10}
	if got := pol.Check(&c); got != MaxEvaluationsReached {
		t.Errorf("Expected gradient budget to fire, got %q", got)
	}
}

func TestPolicyCheck_TargetToleranceAroundTarget(t *testing.T) {
	c := NewStateCommon()
	c.SetCost(2.05)

	pol := Policy{TargetCost: f64(2.0), TargetTol: 0.1}
	if got := pol.Check(&c); got != TargetToleranceReached {
		t.Errorf("Cost above target but within tolerance, expected target_tolerance_reached, got %q", got)
	}

	c.SetCost(1.9)
	if got := pol.Check(&c); got != TargetCostReached {
		t.Errorf("Cost at or below target, expected target_cost_reached, got %q", got)
	}

	c.SetCost(2.2)
	if got := pol.Check(&c); got != "" {
		t.Errorf("Cost outside tolerance, expected no stop, got %q", got)
	}
}

func TestPolicyCheck_Patience(t *testing.T) {
	c := NewStateCommon()
	c.SetCost(5)
	c.LastBestIter = 5
	c.Iter = 14

	pol := Policy{Patience: 10}
	if got := pol.Check(&c); got != "" {
		t.Errorf("Nine stale iterations, expected no stop, got %q", got)
	}
	c.Iter = 15
	if got := pol.Check(&c); got != NoImprovement {
		t.Errorf("Expected no_improvement, got %q", got)
	}
}
