package engine

import (
	"time"

	"github.com/cwbudde/optrun/internal/linalg"
)

// Observer receives lifecycle notifications from a run. Implementations
// must treat the View as read-only. An error from an observer registered
// as optional is logged and the run continues; from a mandatory one it
// fails the run.
type Observer interface {
	// Name identifies the observer in logs.
	Name() string

	// ObserveInit fires once after the solver initialized, with the
	// solver's init diagnostics.
	ObserveInit(solver string, v *View, kv KV) error

	// ObserveIter fires after an iteration, per the registered cadence.
	ObserveIter(v *View, kv KV) error

	// ObserveFinal fires once when the run reaches a terminal phase.
	ObserveFinal(v *View) error
}

// View is a read-only snapshot of the run handed to observers: header
// scalars by value, parameter slices cloned, so observers cannot perturb
// the run.
type View struct {
	Solver       string
	Phase        Phase
	Iter         uint64
	Param        []float64
	Cost         float64
	PrevCost     float64
	BestParam    []float64
	BestCost     float64
	LastBestIter uint64
	IsBest       bool
	FuncCounts   map[string]uint64
	Elapsed      time.Duration
	Status       TerminationStatus
}

func newView(solver string, phase Phase, c *StateCommon) *View {
	counts := make(map[string]uint64, len(c.FuncCounts))
	for k, v := range c.FuncCounts {
		counts[k] = v
	}
	return &View{
		Solver:       solver,
		Phase:        phase,
		Iter:         c.Iter,
		Param:        linalg.Clone(c.Param),
		Cost:         float64(c.Cost),
		PrevCost:     float64(c.PrevCost),
		BestParam:    linalg.Clone(c.BestParam),
		BestCost:     float64(c.BestCost),
		LastBestIter: c.LastBestIter,
		IsBest:       c.isBest,
		FuncCounts:   counts,
		Elapsed:      c.Elapsed,
		Status:       c.Status,
	}
}

type modeKind uint8

const (
	modeAlways modeKind = iota
	modeEvery
	modeNewBest
	modeFinalOnly
	modeNever
)

// ObserverMode controls when a registered observer fires. Init fires for
// every mode except Never and FinalOnly; the final fire happens for
// every mode except Never, on terminated and failed outcomes alike.
type ObserverMode struct {
	kind modeKind
	n    uint64
}

// ModeAlways fires on init, every iteration, and final.
func ModeAlways() ObserverMode { return ObserverMode{kind: modeAlways} }

// ModeEvery fires on init, every nth iteration, and final. n below 1 is
// treated as 1.
func ModeEvery(n uint64) ObserverMode {
	if n < 1 {
		n = 1
	}
	return ObserverMode{kind: modeEvery, n: n}
}

// ModeNewBest fires on init, on iterations that produced a new best,
// and final.
func ModeNewBest() ObserverMode { return ObserverMode{kind: modeNewBest} }

// ModeFinalOnly fires only when the run reaches a terminal phase.
func ModeFinalOnly() ObserverMode { return ObserverMode{kind: modeFinalOnly} }

// ModeNever never fires.
func ModeNever() ObserverMode { return ObserverMode{kind: modeNever} }

func (m ObserverMode) fireInit() bool {
	switch m.kind {
	case modeAlways, modeEvery, modeNewBest:
		return true
	default:
		return false
	}
}

func (m ObserverMode) fireIter(c *StateCommon) bool {
	switch m.kind {
	case modeAlways:
		return true
	case modeEvery:
		return c.Iter%m.n == 0
	case modeNewBest:
		return c.isBest
	default:
		return false
	}
}

func (m ObserverMode) fireFinal() bool { return m.kind != modeNever }

type observerReg struct {
	obs       Observer
	mode      ObserverMode
	mandatory bool
}
