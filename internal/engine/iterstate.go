package engine

import "github.com/cwbudde/optrun/internal/linalg"

// IterState is the state for single-candidate solvers: gradient descent,
// line searches, quasi-Newton methods, simulated annealing.
type IterState struct {
	StateCommon

	// Grad and PrevGrad hold the gradient at the current and previous
	// candidate, when the solver evaluates gradients.
	Grad     []float64 `json:"grad,omitempty"`
	PrevGrad []float64 `json:"prev_grad,omitempty"`
}

// NewIterState returns a state positioned at x0 with costs at +Inf.
func NewIterState(x0 []float64) *IterState {
	s := &IterState{StateCommon: NewStateCommon()}
	s.Param = linalg.Clone(x0)
	return s
}

// SetGrad records a newly evaluated gradient, rotating the previous one
// into PrevGrad.
func (s *IterState) SetGrad(g []float64) {
	s.PrevGrad = s.Grad
	s.Grad = g
}
