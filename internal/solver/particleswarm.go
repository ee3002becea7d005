package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// ParticleSwarm is a constriction-coefficient PSO over box bounds. The
// swarm lives in the state's Individuals; generations are evaluated in
// bulk so cost evaluations fan out across the problem's workers. The
// header tracks the best candidate of the latest generation, and the
// executor's best-tracking keeps the swarm's global best.
type ParticleSwarm struct {
	// PopSize is the number of particles.
	PopSize int `json:"pop_size"`

	// Omega is the inertia weight; C1 and C2 the cognitive and social
	// acceleration coefficients.
	Omega float64 `json:"omega"`
	C1    float64 `json:"c1"`
	C2    float64 `json:"c2"`

	// Lower and Upper are the per-coordinate box bounds; positions are
	// clamped to them after every move.
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`

	// RNG is the swarm's own random source, serialized with the solver
	// so a resumed run replays the identical trajectory.
	RNG *linalg.RNG `json:"rng"`
}

// NewParticleSwarm returns a swarm over the given bounds with the
// standard constriction coefficients.
func NewParticleSwarm(lower, upper []float64, popSize int, seed int64) *ParticleSwarm {
	if popSize < 2 {
		popSize = 40
	}
	return &ParticleSwarm{
		PopSize: popSize,
		Omega:   0.7298,
		C1:      1.49618,
		C2:      1.49618,
		Lower:   linalg.Clone(lower),
		Upper:   linalg.Clone(upper),
		RNG:     linalg.NewRNG(seed),
	}
}

func (ps *ParticleSwarm) Name() string { return NamePSO }

func (ps *ParticleSwarm) validate() error {
	if len(ps.Lower) == 0 || len(ps.Lower) != len(ps.Upper) {
		return fmt.Errorf("bounds must be non-empty and of equal length, got %d/%d", len(ps.Lower), len(ps.Upper))
	}
	for i := range ps.Lower {
		if ps.Lower[i] >= ps.Upper[i] {
			return fmt.Errorf("bounds[%d]: lower %g must be below upper %g", i, ps.Lower[i], ps.Upper[i])
		}
	}
	if ps.RNG == nil {
		return fmt.Errorf("missing random source")
	}
	return nil
}

func (ps *ParticleSwarm) Init(ctx context.Context, p *engine.Problem, st *engine.PopulationState) (*engine.PopulationState, engine.KV, error) {
	if err := ps.validate(); err != nil {
		return st, nil, err
	}
	dim := len(ps.Lower)

	inds := make([]engine.Individual, ps.PopSize)
	positions := make([][]float64, ps.PopSize)
	for i := range inds {
		pos := ps.RNG.UniformVector(ps.Lower, ps.Upper)
		positions[i] = pos
		inds[i] = engine.Individual{
			Param:    pos,
			Velocity: make([]float64, dim),
			BestCost: math.Inf(1),
		}
	}

	costs, err := p.BulkCost(ctx, positions)
	if err != nil {
		return st, nil, err
	}
	bestIdx := 0
	for i := range inds {
		inds[i].Cost = costs[i]
		inds[i].BestParam = linalg.Clone(inds[i].Param)
		inds[i].BestCost = costs[i]
		if costs[i] < costs[bestIdx] {
			bestIdx = i
		}
	}

	st.Individuals = inds
	st.Param = linalg.Clone(inds[bestIdx].Param)
	st.SetCost(costs[bestIdx])
	return st, engine.MakeKV("pop_size", ps.PopSize, "dim", dim), nil
}

func (ps *ParticleSwarm) NextIter(ctx context.Context, p *engine.Problem, st *engine.PopulationState) (*engine.PopulationState, engine.KV, error) {
	gbest := st.BestParam
	if gbest == nil {
		gbest = st.Param
	}

	// Velocity and position updates draw from the RNG on the loop
	// goroutine; only the cost evaluations fan out.
	positions := make([][]float64, len(st.Individuals))
	for i := range st.Individuals {
		ind := &st.Individuals[i]
		for d := range ind.Param {
			r1 := ps.RNG.Float64()
			r2 := ps.RNG.Float64()
			ind.Velocity[d] = ps.Omega*ind.Velocity[d] +
				ps.C1*r1*(ind.BestParam[d]-ind.Param[d]) +
				ps.C2*r2*(gbest[d]-ind.Param[d])
			ind.Param[d] += ind.Velocity[d]
		}
		linalg.Clamp(ind.Param, ps.Lower, ps.Upper)
		positions[i] = ind.Param
	}

	costs, err := p.BulkCost(ctx, positions)
	if err != nil {
		return st, nil, err
	}
	bestIdx := 0
	for i := range st.Individuals {
		ind := &st.Individuals[i]
		ind.Cost = costs[i]
		if costs[i] < ind.BestCost {
			ind.BestCost = costs[i]
			ind.BestParam = linalg.Clone(ind.Param)
		}
		if costs[i] < costs[bestIdx] {
			bestIdx = i
		}
	}

	st.Param = linalg.Clone(st.Individuals[bestIdx].Param)
	st.SetCost(costs[bestIdx])
	return st, engine.MakeKV("gen_best", costs[bestIdx]), nil
}

func (ps *ParticleSwarm) Terminate(*engine.PopulationState) engine.TerminationReason {
	return ""
}
