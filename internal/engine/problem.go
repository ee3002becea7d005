package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/optrun/internal/linalg"
)

// Evaluation count keys.
const (
	OpCost     = "cost"
	OpGradient = "gradient"
	OpHessian  = "hessian"
)

// CostFunction is the minimal objective capability: evaluate one
// candidate. Evaluations are fallible; the engine never panics on a bad
// point.
type CostFunction interface {
	Cost(x []float64) (float64, error)
}

// GradientFunction is implemented by objectives with analytic gradients.
type GradientFunction interface {
	Gradient(x []float64) ([]float64, error)
}

// HessianFunction is implemented by objectives with analytic Hessians,
// returned as dense rows.
type HessianFunction interface {
	Hessian(x []float64) ([][]float64, error)
}

// Problem wraps an objective with per-operation evaluation counting and
// bounded bulk evaluation. Counters advance only on the run's loop
// goroutine: single evaluations count inline, BulkCost adds its whole
// batch once after the join. Counts record attempts, including failed
// evaluations.
type Problem struct {
	op      CostFunction
	counts  map[string]uint64
	workers int
}

// NewProblem wraps op. workers bounds BulkCost fan-out; values below 1
// fall back to runtime.NumCPU().
func NewProblem(op CostFunction, workers int) *Problem {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Problem{
		op:      op,
		counts:  make(map[string]uint64),
		workers: workers,
	}
}

// Operator returns the wrapped objective.
func (p *Problem) Operator() CostFunction { return p.op }

// Cost evaluates x, counting one cost evaluation.
func (p *Problem) Cost(x []float64) (float64, error) {
	p.counts[OpCost]++
	c, err := p.op.Cost(x)
	if err != nil {
		return 0, &EvaluationError{Op: OpCost, Err: err}
	}
	return c, nil
}

// Gradient evaluates the gradient at x, counting one gradient
// evaluation. Returns an EvaluationError wrapping ErrNotImplemented if
// the objective has no gradient capability.
func (p *Problem) Gradient(x []float64) ([]float64, error) {
	g, ok := p.op.(GradientFunction)
	if !ok {
		return nil, &EvaluationError{Op: OpGradient, Err: ErrNotImplemented}
	}
	p.counts[OpGradient]++
	out, err := g.Gradient(x)
	if err != nil {
		return nil, &EvaluationError{Op: OpGradient, Err: err}
	}
	return out, nil
}

// Hessian evaluates the Hessian at x, counting one hessian evaluation.
// Returns an EvaluationError wrapping ErrNotImplemented if the objective
// has no hessian capability.
func (p *Problem) Hessian(x []float64) ([][]float64, error) {
	h, ok := p.op.(HessianFunction)
	if !ok {
		return nil, &EvaluationError{Op: OpHessian, Err: ErrNotImplemented}
	}
	p.counts[OpHessian]++
	out, err := h.Hessian(x)
	if err != nil {
		return nil, &EvaluationError{Op: OpHessian, Err: err}
	}
	return out, nil
}

// BulkCost evaluates all candidates, fanning out across up to the
// configured number of workers and joining before it returns. The cost
// counter advances by len(xs) on the caller's goroutine. A cancelled
// context surfaces as the context's error.
func (p *Problem) BulkCost(ctx context.Context, xs [][]float64) ([]float64, error) {
	out := make([]float64, len(xs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, x := range xs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := p.op.Cost(x)
			if err != nil {
				return &EvaluationError{Op: OpCost, Err: err}
			}
			out[i] = c
			return nil
		})
	}
	err := g.Wait()
	p.counts[OpCost] += uint64(len(xs))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Counts returns a copy of the per-operation evaluation counters.
func (p *Problem) Counts() map[string]uint64 {
	out := make(map[string]uint64, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// SetCounts replaces the counters; used when resuming from a checkpoint.
func (p *Problem) SetCounts(counts map[string]uint64) {
	p.counts = make(map[string]uint64, len(counts))
	for k, v := range counts {
		p.counts[k] = v
	}
}

// Line returns a fresh problem over the one-dimensional restriction
// phi(alpha) = f(x + alpha*d). Its cost and gradient delegate to this
// problem's counted methods, so work done by a nested run shows up in
// the parent's counters as well as the nested run's own.
func (p *Problem) Line(x, d []float64) *Problem {
	return NewProblem(&lineObjective{parent: p, x: linalg.Clone(x), d: linalg.Clone(d)}, 1)
}

type lineObjective struct {
	parent *Problem
	x, d   []float64
}

func (l *lineObjective) Cost(alpha []float64) (float64, error) {
	return l.parent.Cost(linalg.AXPY(alpha[0], l.d, l.x))
}

// Gradient returns the directional derivative dphi/dalpha = grad(f) . d.
func (l *lineObjective) Gradient(alpha []float64) ([]float64, error) {
	g, err := l.parent.Gradient(linalg.AXPY(alpha[0], l.d, l.x))
	if err != nil {
		return nil, err
	}
	return []float64{linalg.Dot(g, l.d)}, nil
}
