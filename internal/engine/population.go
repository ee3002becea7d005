package engine

import "github.com/cwbudde/optrun/internal/linalg"

// Individual is one member of a population state.
type Individual struct {
	Param    []float64 `json:"param"`
	Velocity []float64 `json:"velocity,omitempty"`
	Cost     float64   `json:"cost"`

	// BestParam and BestCost track the individual's own history
	// (the particle's personal best in swarm methods).
	BestParam []float64 `json:"best_param,omitempty"`
	BestCost  float64   `json:"best_cost"`
}

// PopulationState is the state for population solvers such as particle
// swarm. The header's Param/Cost track the best candidate of the latest
// generation; per-member history lives in Individuals.
type PopulationState struct {
	StateCommon

	Individuals []Individual `json:"individuals,omitempty"`
}

// NewPopulationState returns a state positioned at x0; the solver
// populates Individuals during Init. Population solvers that draw their
// members from bounds use x0 only as the pre-init header position.
func NewPopulationState(x0 []float64) *PopulationState {
	s := &PopulationState{StateCommon: NewStateCommon()}
	s.Param = linalg.Clone(x0)
	return s
}
