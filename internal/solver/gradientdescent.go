package solver

import (
	"context"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// GradientDescent is steepest descent with a fixed step size:
// x' = x - gamma * grad f(x).
type GradientDescent struct {
	// StepSize is the fixed step gamma.
	StepSize float64 `json:"step_size"`

	// GradTol requests a stop once the gradient norm drops to or below
	// it. Zero disables the check.
	GradTol float64 `json:"grad_tol,omitempty"`
}

// NewGradientDescent returns the solver with its default step size.
func NewGradientDescent() *GradientDescent {
	return &GradientDescent{StepSize: 0.01}
}

func (g *GradientDescent) Name() string { return NameGD }

func (g *GradientDescent) Init(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	c, err := p.Cost(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetCost(c)
	return st, engine.MakeKV("step_size", g.StepSize), nil
}

func (g *GradientDescent) NextIter(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	grad, err := p.Gradient(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetGrad(grad)
	st.Param = linalg.AXPY(-g.StepSize, grad, st.Param)
	c, err := p.Cost(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetCost(c)
	return st, engine.MakeKV("step_size", g.StepSize, "grad_norm", linalg.Norm(grad)), nil
}

func (g *GradientDescent) Terminate(st *engine.IterState) engine.TerminationReason {
	if g.GradTol > 0 && st.Grad != nil && linalg.Norm(st.Grad) <= g.GradTol {
		return engine.SolverRequestedStop
	}
	return ""
}
