package run

import (
	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
)

// Outcome is the flat summary of a finished run, shaped for the CLI's
// JSON output and the server's run listing.
type Outcome struct {
	RunID      string                   `json:"runId"`
	Solver     string                   `json:"solver"`
	Objective  string                   `json:"objective"`
	Phase      engine.Phase             `json:"phase"`
	Reason     engine.TerminationReason `json:"reason,omitempty"`
	Iterations uint64                   `json:"iterations"`
	BestCost   engine.Float             `json:"bestCost"`
	BestParam  []float64                `json:"bestParam,omitempty"`
	FuncCounts map[string]uint64        `json:"funcCounts,omitempty"`
	ElapsedMS  int64                    `json:"elapsedMs"`
	Error      string                   `json:"error,omitempty"`
}

func newOutcome(spec *Spec, st engine.State, phase engine.Phase, err error) *Outcome {
	c := st.Common()
	out := &Outcome{
		RunID:      spec.RunID,
		Solver:     spec.Solver,
		Objective:  spec.Objective,
		Phase:      phase,
		Reason:     c.Status.Reason,
		Iterations: c.Iter,
		BestCost:   c.BestCost,
		BestParam:  linalg.Clone(c.BestParam),
		ElapsedMS:  c.Elapsed.Milliseconds(),
	}
	if len(c.FuncCounts) > 0 {
		out.FuncCounts = make(map[string]uint64, len(c.FuncCounts))
		for op, n := range c.FuncCounts {
			out.FuncCounts[op] = n
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
