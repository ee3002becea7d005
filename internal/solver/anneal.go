package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// Cooling schedules for SimulatedAnnealing.
const (
	ScheduleGeometric = "geometric"
	ScheduleFast      = "fast"
	ScheduleBoltzmann = "boltzmann"
)

// SimulatedAnnealing proposes Gaussian neighbors and accepts uphill
// moves with Metropolis probability exp(-(delta)/T). The current
// temperature and the random source are serialized, so a resumed run
// cools and draws exactly as the uninterrupted one would.
type SimulatedAnnealing struct {
	// InitTemp is the starting temperature.
	InitTemp float64 `json:"init_temp"`

	// Schedule picks the cooling law; Factor is the geometric decay per
	// iteration.
	Schedule string  `json:"schedule"`
	Factor   float64 `json:"factor"`

	// StepSize scales the Gaussian neighbor proposal.
	StepSize float64 `json:"step_size"`

	// Temp is the current temperature under the geometric schedule.
	Temp float64 `json:"temp"`

	RNG *linalg.RNG `json:"rng"`
}

// NewSimulatedAnnealing returns the solver with a geometric schedule.
func NewSimulatedAnnealing(seed int64) *SimulatedAnnealing {
	return &SimulatedAnnealing{
		InitTemp: 10,
		Schedule: ScheduleGeometric,
		Factor:   0.97,
		StepSize: 1,
		RNG:      linalg.NewRNG(seed),
	}
}

func (sa *SimulatedAnnealing) Name() string { return NameAnneal }

func (sa *SimulatedAnnealing) Init(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	switch sa.Schedule {
	case ScheduleGeometric, ScheduleFast, ScheduleBoltzmann:
	default:
		return st, nil, fmt.Errorf("unknown schedule %q", sa.Schedule)
	}
	if sa.RNG == nil {
		return st, nil, fmt.Errorf("missing random source")
	}
	if sa.InitTemp <= 0 {
		return st, nil, fmt.Errorf("initial temperature must be positive, got %g", sa.InitTemp)
	}

	c, err := p.Cost(st.Param)
	if err != nil {
		return st, nil, err
	}
	st.SetCost(c)
	sa.Temp = sa.InitTemp
	return st, engine.MakeKV("init_temp", sa.InitTemp, "schedule", sa.Schedule), nil
}

func (sa *SimulatedAnnealing) NextIter(_ context.Context, p *engine.Problem, st *engine.IterState) (*engine.IterState, engine.KV, error) {
	temp := sa.temperature(st.Iter + 1)

	cand := make([]float64, len(st.Param))
	for i, v := range st.Param {
		cand[i] = v + sa.StepSize*sa.RNG.NormFloat64()
	}
	c, err := p.Cost(cand)
	if err != nil {
		return st, nil, err
	}

	cur := float64(st.Cost)
	accepted := c < cur || sa.RNG.Float64() < math.Exp(-(c-cur)/temp)
	if accepted {
		st.Param = cand
		st.SetCost(c)
	}
	return st, engine.MakeKV("t", temp, "candidate_cost", c, "accepted", accepted), nil
}

func (sa *SimulatedAnnealing) Terminate(*engine.IterState) engine.TerminationReason {
	return ""
}

// temperature returns the temperature for iteration k (1-based). The
// geometric schedule mutates Temp; the others are pure in k.
func (sa *SimulatedAnnealing) temperature(k uint64) float64 {
	switch sa.Schedule {
	case ScheduleFast:
		return sa.InitTemp / float64(1+k)
	case ScheduleBoltzmann:
		return sa.InitTemp / math.Log(1+float64(k))
	default:
		sa.Temp *= sa.Factor
		return sa.Temp
	}
}
