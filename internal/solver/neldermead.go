package solver

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// NelderMead is the derivative-free downhill simplex. Init builds a
// simplex of dim+1 vertices around the start point; each iteration
// applies one reflect/expand/contract/shrink step and keeps the
// vertices sorted by cost. The header tracks the best vertex.
type NelderMead struct {
	// Alpha, Gamma, Rho and Sigma are the reflection, expansion,
	// contraction and shrink coefficients.
	Alpha float64 `json:"alpha"`
	Gamma float64 `json:"gamma"`
	Rho   float64 `json:"rho"`
	Sigma float64 `json:"sigma"`

	// Tol requests a stop once the sample standard deviation of the
	// vertex costs drops to or below it.
	Tol float64 `json:"tol"`
}

// NewNelderMead returns the solver with the standard coefficients.
func NewNelderMead() *NelderMead {
	return &NelderMead{Alpha: 1, Gamma: 2, Rho: 0.5, Sigma: 0.5, Tol: 1e-10}
}

func (nm *NelderMead) Name() string { return NameNelderMead }

func (nm *NelderMead) Init(ctx context.Context, p *engine.Problem, st *engine.SimplexState) (*engine.SimplexState, engine.KV, error) {
	x0 := st.Param
	n := len(x0)
	if n == 0 {
		return st, nil, fmt.Errorf("empty start point")
	}

	// Start point plus one offset vertex per dimension, offset by 5% of
	// the coordinate (a small absolute nudge on zeros).
	verts := make([][]float64, n+1)
	verts[0] = linalg.Clone(x0)
	for i := 0; i < n; i++ {
		v := linalg.Clone(x0)
		if v[i] != 0 {
			v[i] *= 1.05
		} else {
			v[i] = 0.00025
		}
		verts[i+1] = v
	}

	costs, err := p.BulkCost(ctx, verts)
	if err != nil {
		return st, nil, err
	}
	st.Vertices = verts
	st.VertexCosts = costs
	sortSimplex(st)
	st.Param = linalg.Clone(st.Vertices[0])
	st.SetCost(st.VertexCosts[0])
	return st, engine.MakeKV("vertices", n+1, "spread", simplexSpread(st)), nil
}

func (nm *NelderMead) NextIter(ctx context.Context, p *engine.Problem, st *engine.SimplexState) (*engine.SimplexState, engine.KV, error) {
	n := len(st.Vertices) - 1
	worst := st.Vertices[n]
	fBest := st.VertexCosts[0]
	fSecond := st.VertexCosts[n-1]
	fWorst := st.VertexCosts[n]

	// Centroid of all vertices but the worst.
	centroid := make([]float64, len(worst))
	for i := 0; i < n; i++ {
		for d, v := range st.Vertices[i] {
			centroid[d] += v
		}
	}
	for d := range centroid {
		centroid[d] /= float64(n)
	}

	xr := linalg.AXPY(nm.Alpha, linalg.Sub(centroid, worst), centroid)
	fr, err := p.Cost(xr)
	if err != nil {
		return st, nil, err
	}

	var op string
	shrink := false
	switch {
	case fr < fBest:
		xe := linalg.AXPY(nm.Gamma, linalg.Sub(xr, centroid), centroid)
		fe, err := p.Cost(xe)
		if err != nil {
			return st, nil, err
		}
		if fe < fr {
			st.Vertices[n], st.VertexCosts[n] = xe, fe
			op = "expansion"
		} else {
			st.Vertices[n], st.VertexCosts[n] = xr, fr
			op = "reflection"
		}
	case fr < fSecond:
		st.Vertices[n], st.VertexCosts[n] = xr, fr
		op = "reflection"
	case fr < fWorst:
		xc := linalg.AXPY(nm.Rho, linalg.Sub(xr, centroid), centroid)
		fc, err := p.Cost(xc)
		if err != nil {
			return st, nil, err
		}
		if fc <= fr {
			st.Vertices[n], st.VertexCosts[n] = xc, fc
			op = "outside_contraction"
		} else {
			shrink = true
		}
	default:
		xc := linalg.AXPY(nm.Rho, linalg.Sub(worst, centroid), centroid)
		fc, err := p.Cost(xc)
		if err != nil {
			return st, nil, err
		}
		if fc < fWorst {
			st.Vertices[n], st.VertexCosts[n] = xc, fc
			op = "inside_contraction"
		} else {
			shrink = true
		}
	}

	if shrink {
		op = "shrink"
		best := st.Vertices[0]
		pts := make([][]float64, n)
		for i := 1; i <= n; i++ {
			pts[i-1] = linalg.AXPY(nm.Sigma, linalg.Sub(st.Vertices[i], best), best)
		}
		costs, err := p.BulkCost(ctx, pts)
		if err != nil {
			return st, nil, err
		}
		for i := 1; i <= n; i++ {
			st.Vertices[i] = pts[i-1]
			st.VertexCosts[i] = costs[i-1]
		}
	}

	sortSimplex(st)
	st.Param = linalg.Clone(st.Vertices[0])
	st.SetCost(st.VertexCosts[0])
	return st, engine.MakeKV("operation", op, "spread", simplexSpread(st)), nil
}

func (nm *NelderMead) Terminate(st *engine.SimplexState) engine.TerminationReason {
	if len(st.VertexCosts) > 1 && simplexSpread(st) <= nm.Tol {
		return engine.SolverRequestedStop
	}
	return ""
}

func simplexSpread(st *engine.SimplexState) float64 {
	return stat.StdDev(st.VertexCosts, nil)
}

type simplexOrder struct {
	v [][]float64
	c []float64
}

func (s simplexOrder) Len() int           { return len(s.c) }
func (s simplexOrder) Less(i, j int) bool { return s.c[i] < s.c[j] }
func (s simplexOrder) Swap(i, j int) {
	s.v[i], s.v[j] = s.v[j], s.v[i]
	s.c[i], s.c[j] = s.c[j], s.c[i]
}

func sortSimplex(st *engine.SimplexState) {
	sort.Stable(simplexOrder{st.Vertices, st.VertexCosts})
}
