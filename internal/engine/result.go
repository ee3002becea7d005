package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Result is the outcome of a run: the solver, its final state, the
// terminal phase, and the run error if the phase is failed. Even a
// failed result carries the best parameter vector found before the
// failure.
type Result[S State] struct {
	solver Solver[S]
	state  S
	phase  Phase
	err    error
}

func newResult[S State](solver Solver[S], state S, phase Phase, err error) *Result[S] {
	return &Result[S]{solver: solver, state: state, phase: phase, err: err}
}

// Solver returns the solver that produced this result.
func (r *Result[S]) Solver() Solver[S] { return r.solver }

// State returns the final state.
func (r *Result[S]) State() S { return r.state }

// Phase reports whether the run terminated or failed.
func (r *Result[S]) Phase() Phase { return r.phase }

// Err returns the run error, nil unless the phase is failed.
func (r *Result[S]) Err() error { return r.err }

// BestParam returns the best parameter vector found.
func (r *Result[S]) BestParam() []float64 { return r.state.Common().BestParam }

// BestCost returns the cost of the best parameter vector.
func (r *Result[S]) BestCost() float64 { return float64(r.state.Common().BestCost) }

func (r *Result[S]) String() string {
	c := r.state.Common()
	var b strings.Builder
	b.WriteString("OptimizationResult:\n")
	fmt.Fprintf(&b, "    Solver:        %s\n", r.solver.Name())
	fmt.Fprintf(&b, "    phase:         %s\n", r.phase)
	fmt.Fprintf(&b, "    param (best):  %v\n", c.BestParam)
	fmt.Fprintf(&b, "    cost (best):   %v\n", c.BestCost)
	fmt.Fprintf(&b, "    iters (best):  %d\n", c.LastBestIter)
	fmt.Fprintf(&b, "    iters (total): %d\n", c.Iter)
	fmt.Fprintf(&b, "    termination:   %s\n", c.Status)
	fmt.Fprintf(&b, "    time:          %s\n", c.Elapsed)
	if len(c.FuncCounts) > 0 {
		keys := make([]string, 0, len(c.FuncCounts))
		for k := range c.FuncCounts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%d", k, c.FuncCounts[k]))
		}
		fmt.Fprintf(&b, "    evaluations:   %s\n", strings.Join(parts, " "))
	}
	if r.err != nil {
		fmt.Fprintf(&b, "    error:         %v\n", r.err)
	}
	return b.String()
}
