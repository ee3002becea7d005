package engine

// TerminationReason identifies why a run stopped. Exactly one reason is
// attached to a state, at the moment it transitions to terminated.
type TerminationReason string

const (
	// MaxIterationsReached means the policy's iteration budget ran out.
	MaxIterationsReached TerminationReason = "max_iterations_reached"

	// MaxEvaluationsReached means a per-operation evaluation budget
	// (cost, gradient or hessian) ran out.
	MaxEvaluationsReached TerminationReason = "max_evaluations_reached"

	// TargetCostReached means the current cost dropped to or below the
	// policy's target cost.
	TargetCostReached TerminationReason = "target_cost_reached"

	// TargetToleranceReached means the current cost came within the
	// policy's tolerance of the target.
	TargetToleranceReached TerminationReason = "target_tolerance_reached"

	// NoImprovement means no new best was found within the policy's
	// patience window.
	NoImprovement TerminationReason = "no_improvement"

	// TimedOut means the wall-clock budget ran out.
	TimedOut TerminationReason = "timed_out"

	// SolverRequestedStop means the solver's own termination check fired
	// (gradient norm below tolerance, simplex collapsed, Armijo met).
	SolverRequestedStop TerminationReason = "solver_requested_stop"

	// ExternalInterrupt means the run's context was cancelled. Interrupts
	// terminate a run; they never fail it.
	ExternalInterrupt TerminationReason = "external_interrupt"

	// LineSearchFailed means a nested line search could not terminate
	// positively.
	LineSearchFailed TerminationReason = "line_search_failed"
)

// TerminationStatus records whether a run has terminated and why.
// The zero value means "not terminated".
type TerminationStatus struct {
	Terminated bool              `json:"terminated"`
	Reason     TerminationReason `json:"reason,omitempty"`
}

func (s TerminationStatus) String() string {
	if !s.Terminated {
		return "not terminated"
	}
	return string(s.Reason)
}
