package engine

import "github.com/cwbudde/optrun/internal/linalg"

// SimplexState is the state for direct-search solvers such as
// Nelder-Mead. The header's Param/Cost track the best vertex.
type SimplexState struct {
	StateCommon

	// Vertices holds the dim+1 simplex corners; VertexCosts their
	// objective values, index-aligned.
	Vertices    [][]float64 `json:"vertices,omitempty"`
	VertexCosts []float64   `json:"vertex_costs,omitempty"`
}

// NewSimplexState returns a state positioned at x0; the solver builds
// the initial simplex around it during Init.
func NewSimplexState(x0 []float64) *SimplexState {
	s := &SimplexState{StateCommon: NewStateCommon()}
	s.Param = linalg.Clone(x0)
	return s
}
