package engine

import (
	"math"
	"time"
)

// Policy holds the generic termination limits the executor evaluates
// once per completed iteration, after the solver's own check. Zero
// values disable each limit, so the zero Policy never stops a run.
type Policy struct {
	// MaxIters stops the run once this many iterations completed.
	MaxIters uint64 `json:"max_iters,omitempty"`

	// MaxCostEvals, MaxGradEvals and MaxHessEvals stop the run once the
	// matching evaluation counter reaches the budget.
	MaxCostEvals uint64 `json:"max_cost_evals,omitempty"`
	MaxGradEvals uint64 `json:"max_grad_evals,omitempty"`
	MaxHessEvals uint64 `json:"max_hess_evals,omitempty"`

	// MaxDuration stops the run once its elapsed wall-clock time
	// (carried across resumes) reaches the budget.
	MaxDuration time.Duration `json:"max_duration,omitempty"`

	// TargetCost stops the run once the current cost is at or below it.
	// nil disables the check.
	TargetCost *float64 `json:"target_cost,omitempty"`

	// TargetTol stops the run once the current cost is within this
	// absolute tolerance of the target (TargetCost when set, otherwise
	// zero).
	TargetTol float64 `json:"target_tol,omitempty"`

	// Patience stops the run once this many iterations passed without a
	// new best.
	Patience uint64 `json:"patience,omitempty"`
}

// DefaultPolicy returns a policy with every limit disabled.
func DefaultPolicy() Policy { return Policy{} }

// Check evaluates the limits in their documented order and returns the
// first reason that fires, or "". Order: iterations; evaluation budgets
// (cost, gradient, hessian); wall clock; target cost; target tolerance;
// no-improvement window.
func (p Policy) Check(c *StateCommon) TerminationReason {
	if p.MaxIters > 0 && c.Iter >= p.MaxIters {
		return MaxIterationsReached
	}
	if p.MaxCostEvals > 0 && c.FuncCounts[OpCost] >= p.MaxCostEvals {
		return MaxEvaluationsReached
	}
	if p.MaxGradEvals > 0 && c.FuncCounts[OpGradient] >= p.MaxGradEvals {
		return MaxEvaluationsReached
	}
	if p.MaxHessEvals > 0 && c.FuncCounts[OpHessian] >= p.MaxHessEvals {
		return MaxEvaluationsReached
	}
	if p.MaxDuration > 0 && c.Elapsed >= p.MaxDuration {
		return TimedOut
	}
	if p.TargetCost != nil && float64(c.Cost) <= *p.TargetCost {
		return TargetCostReached
	}
	if p.TargetTol > 0 {
		target := 0.0
		if p.TargetCost != nil {
			target = *p.TargetCost
		}
		if math.Abs(float64(c.Cost)-target) <= p.TargetTol {
			return TargetToleranceReached
		}
	}
	if p.Patience > 0 && c.Iter-c.LastBestIter >= p.Patience {
		return NoImprovement
	}
	return ""
}
