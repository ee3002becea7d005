package solver

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// BFGS is a quasi-Newton solver maintaining a dense inverse-Hessian
// approximation. Each iteration computes the search direction
// d = -H * grad, runs a nested Backtracking search over the Line
// restriction to pick the step, then applies the BFGS inverse update.
// A nested search that cannot satisfy Armijo surfaces as
// ErrLineSearchFailed and terminates the parent run.
type BFGS struct {
	// GradTol requests a stop once the gradient norm drops to or below
	// it.
	GradTol float64 `json:"grad_tol"`

	// LineInitStep seeds each nested search; LineMaxIters bounds its
	// trials.
	LineInitStep float64 `json:"line_init_step"`
	LineMaxIters uint64  `json:"line_max_iters"`

	// Dim and InvH (row-major Dim x Dim) persist the inverse-Hessian
	// approximation across checkpoints.
	Dim  int       `json:"dim,omitempty"`
	InvH []float64 `json:"inv_h,omitempty"`
}

// NewBFGS returns the solver with default tolerances.
func NewBFGS() *BFGS {
	return &BFGS{
		GradTol:      1e-8,
		LineInitStep: 1,
		LineMaxIters: 40,
	}
}

func (b *BFGS) Name() string { return NameBFGS }

func (b *BFGS) Init(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	c, err := p.Cost(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetCost(c)
	g, err := p.Gradient(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetGrad(g)

	n := len(st.Param)
	b.Dim = n
	b.InvH = identity(n)
	return st, engine.MakeKV("dim", n, "grad_norm", linalg.Norm(g)), nil
}

func (b *BFGS) NextIter(ctx context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	n := b.Dim
	H := mat.NewDense(n, n, b.InvH)
	gv := mat.NewVecDense(n, st.Grad)

	dv := mat.NewVecDense(n, nil)
	dv.MulVec(H, gv)
	dv.ScaleVec(-1, dv)
	dir := dv.RawVector().Data

	// A corrupted approximation can stop producing descent directions;
	// fall back to steepest descent and restart from the identity.
	if linalg.Dot(st.Grad, dir) >= 0 {
		b.InvH = identity(n)
		dir = linalg.Scale(-1, st.Grad)
	}

	ls := NewBacktracking()
	ls.InitStep = b.LineInitStep
	nested := engine.NewExecutor(ls, p.Line(st.Param, dir), engine.NewIterState([]float64{0})).
		WithPolicy(engine.Policy{MaxIters: b.LineMaxIters})
	res, err := nested.Run(ctx)
	if err != nil {
		return st, nil, err
	}

	ns := res.State()
	switch ns.Status.Reason {
	case engine.SolverRequestedStop:
	case engine.ExternalInterrupt:
		return st, nil, ctx.Err()
	default:
		return st, nil, fmt.Errorf("line search stopped with %s: %w", ns.Status.Reason, engine.ErrLineSearchFailed)
	}
	alpha := ns.Param[0]

	newParam := linalg.AXPY(alpha, dir, st.Param)
	if !linalg.AllFinite(newParam) {
		return st, nil, &engine.NumericalError{Op: "bfgs_step", Detail: "non-finite parameters after line step"}
	}
	newGrad, err := p.Gradient(newParam)
	if err != nil {
		return st, nil, err
	}

	s := linalg.Scale(alpha, dir)
	y := linalg.Sub(newGrad, st.Grad)
	sy := linalg.Dot(s, y)
	skipped := sy <= 1e-10
	if !skipped {
		b.update(s, y, sy)
	}

	st.Param = newParam
	st.SetCost(float64(ns.Cost))
	st.SetGrad(newGrad)

	kv := engine.MakeKV("alpha", alpha, "grad_norm", linalg.Norm(newGrad), "line_iters", ns.Iter)
	if skipped {
		kv = kv.Append("hessian_update", "skipped")
	}
	return st, kv, nil
}

func (b *BFGS) Terminate(st *engine.IterState) engine.TerminationReason {
	if st.Grad != nil && linalg.Norm(st.Grad) <= b.GradTol {
		return engine.SolverRequestedStop
	}
	return ""
}

// update applies the inverse BFGS formula
// H' = (I - rho*s*y')*H*(I - rho*y*s') + rho*s*s' with rho = 1/(s.y).
func (b *BFGS) update(s, y []float64, sy float64) {
	n := b.Dim
	rho := 1 / sy
	sv := mat.NewVecDense(n, s)
	yv := mat.NewVecDense(n, y)

	left := mat.NewDense(n, n, nil)
	left.Outer(-rho, sv, yv)
	addIdentity(left)
	right := mat.NewDense(n, n, nil)
	right.Outer(-rho, yv, sv)
	addIdentity(right)

	tmp := mat.NewDense(n, n, nil)
	tmp.Mul(left, mat.NewDense(n, n, b.InvH))
	next := mat.NewDense(n, n, nil)
	next.Mul(tmp, right)

	ss := mat.NewDense(n, n, nil)
	ss.Outer(rho, sv, sv)
	next.Add(next, ss)

	copy(b.InvH, next.RawMatrix().Data)
}

func identity(n int) []float64 {
	m := make([]float64, n*n)
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
	return m
}

func addIdentity(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
}
