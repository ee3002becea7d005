package engine

import (
	"math"
	"time"

	"github.com/cwbudde/optrun/internal/linalg"
)

// State is the behavioral surface the Executor needs from a run's state.
// Concrete states embed StateCommon (which already satisfies both
// methods) and add algorithm-family storage: gradients, populations,
// simplex vertices.
type State interface {
	// Common returns the shared header the engine tracks for every run.
	Common() *StateCommon

	// Update folds the current candidate into the best-tracking fields.
	// The executor calls it exactly once per iteration, after the solver
	// step, before policy checks, observers and checkpointing.
	Update()
}

// StateCommon is the header every state carries: current and best
// candidate, iteration and evaluation bookkeeping, elapsed time and
// termination status. All fields serialize to JSON for checkpointing.
type StateCommon struct {
	// Param is the current candidate parameter vector.
	Param []float64 `json:"param,omitempty"`

	// BestParam is the best candidate seen so far.
	BestParam []float64 `json:"best_param,omitempty"`

	// Cost, PrevCost and BestCost track the objective value of the
	// current, previous and best candidate. Costs start at +Inf so the
	// first finite evaluation always becomes the best.
	Cost     Float `json:"cost"`
	PrevCost Float `json:"prev_cost"`
	BestCost Float `json:"best_cost"`

	// Iter counts completed iterations; it is 0 after init.
	Iter uint64 `json:"iter"`

	// LastBestIter is the iteration that produced the current best.
	LastBestIter uint64 `json:"last_best_iter"`

	// FuncCounts holds per-operation evaluation counts, keyed by
	// OpCost, OpGradient and OpHessian.
	FuncCounts map[string]uint64 `json:"func_counts,omitempty"`

	// Elapsed is the wall-clock time consumed so far, including solver
	// work, policy checks, observers and checkpointing. Resumed runs
	// carry it forward.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Status records termination. The transition is one-way and the
	// first reason sticks.
	Status TerminationStatus `json:"termination_status"`

	isBest bool
}

// NewStateCommon returns a header with all costs at +Inf.
func NewStateCommon() StateCommon {
	return StateCommon{
		Cost:     Float(math.Inf(1)),
		PrevCost: Float(math.Inf(1)),
		BestCost: Float(math.Inf(1)),
	}
}

// Common returns the header itself, satisfying State for every
// embedding type.
func (c *StateCommon) Common() *StateCommon { return c }

// Update folds the current candidate into the best-tracking fields.
// The best moves only on strictly lower cost: ties keep the earlier
// candidate (and LastBestIter), and NaN never becomes best. BestCost is
// therefore monotonically non-increasing over a run.
func (c *StateCommon) Update() {
	c.isBest = false
	if math.IsNaN(float64(c.Cost)) {
		return
	}
	if c.Cost < c.BestCost {
		c.BestParam = linalg.Clone(c.Param)
		c.BestCost = c.Cost
		c.LastBestIter = c.Iter
		c.isBest = true
	}
}

// SetCost records a newly evaluated cost for the current candidate,
// rotating the previous value into PrevCost.
func (c *StateCommon) SetCost(cost float64) {
	c.PrevCost = c.Cost
	c.Cost = Float(cost)
}

// IsBest reports whether the most recent Update produced a new best.
// The flag is transient and not serialized.
func (c *StateCommon) IsBest() bool { return c.isBest }

// MarkTerminated records the first termination reason; later calls are
// ignored.
func (c *StateCommon) MarkTerminated(r TerminationReason) {
	if c.Status.Terminated {
		return
	}
	c.Status = TerminationStatus{Terminated: true, Reason: r}
}

// Terminated reports whether the run has terminated.
func (c *StateCommon) Terminated() bool { return c.Status.Terminated }

// SyncCounts copies the problem's evaluation counters into the state.
func (c *StateCommon) SyncCounts(p *Problem) {
	c.FuncCounts = p.Counts()
}
