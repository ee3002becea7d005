package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/optrun/internal/engine"
)

// Backtracking is an Armijo line search over a one-dimensional problem,
// usually a Line restriction built by a parent solver. The parameter
// vector is the single trial step alpha. Each iteration evaluates one
// trial; the search stops positively (SolverRequestedStop) once the
// Armijo condition holds, and signals ErrLineSearchFailed when the step
// contracts below MinStep.
type Backtracking struct {
	// ContractionFactor multiplies the step after a rejected trial.
	ContractionFactor float64 `json:"contraction_factor"`

	// DecreaseFactor is the Armijo sufficient-decrease coefficient.
	DecreaseFactor float64 `json:"decrease_factor"`

	// InitStep is the first trial step; MinStep the failure threshold.
	InitStep float64 `json:"init_step"`
	MinStep  float64 `json:"min_step"`

	// InitCost and InitSlope are phi(0) and phi'(0), captured during
	// Init and serialized so a resumed search keeps its Armijo line.
	InitCost  float64 `json:"init_cost"`
	InitSlope float64 `json:"init_slope"`
}

// NewBacktracking returns the search with the conventional constants:
// contraction 0.5, decrease 1e-4, initial step 1.
func NewBacktracking() *Backtracking {
	return &Backtracking{
		ContractionFactor: 0.5,
		DecreaseFactor:    1e-4,
		InitStep:          1,
		MinStep:           1e-20,
	}
}

func (b *Backtracking) Name() string { return NameBacktracking }

func (b *Backtracking) Init(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	zero := []float64{0}
	f0, err := p.Cost(zero)
	if err != nil {
		return st, nil, err
	}
	g0, err := p.Gradient(zero)
	if err != nil {
		return st, nil, err
	}
	b.InitCost = f0
	b.InitSlope = g0[0]
	if b.InitSlope >= 0 {
		return st, nil, fmt.Errorf("not a descent direction (slope %g): %w", b.InitSlope, engine.ErrLineSearchFailed)
	}
	if len(st.Param) != 1 || st.Param[0] <= 0 {
		st.Param = []float64{b.InitStep}
	}
	return st, engine.MakeKV("phi0", f0, "dphi0", b.InitSlope), nil
}

func (b *Backtracking) NextIter(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	alpha := st.Param[0]
	if !math.IsInf(float64(st.Cost), 1) {
		// The previous trial was evaluated and Armijo did not hold.
		alpha *= b.ContractionFactor
		if alpha < b.MinStep {
			return st, nil, fmt.Errorf("step %g fell below minimum %g: %w", alpha, b.MinStep, engine.ErrLineSearchFailed)
		}
	}
	phi, err := p.Cost([]float64{alpha})
	if err != nil {
		return st, nil, err
	}
	st.Param = []float64{alpha}
	st.SetCost(phi)
	return st, engine.MakeKV("alpha", alpha, "phi", phi), nil
}

// Terminate reports a positive stop once the current trial satisfies
// the Armijo condition.
func (b *Backtracking) Terminate(st *engine.IterState) engine.TerminationReason {
	if math.IsInf(float64(st.Cost), 1) {
		return ""
	}
	if armijoMet(float64(st.Cost), b.InitCost, b.InitSlope, st.Param[0], b.DecreaseFactor) {
		return engine.SolverRequestedStop
	}
	return ""
}

// armijoMet is the sufficient-decrease test
// phi(alpha) <= phi(0) + c*alpha*phi'(0).
func armijoMet(f, f0, slope, step, decrease float64) bool {
	return f <= f0+decrease*step*slope
}
