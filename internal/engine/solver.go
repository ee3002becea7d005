package engine

import "context"

// Solver is the contract an optimization algorithm implements to run
// under an Executor. A solver never loops: Init prepares the state from
// the caller-supplied starting point, NextIter advances exactly one
// iteration, and the executor owns everything else (counting, best
// tracking, termination, observers, checkpoints).
//
// Init and NextIter return the state they were handed, updated in
// place or replaced. The KV they return is the solver's per-call
// diagnostics, forwarded verbatim to observers. Terminate inspects the
// state and reports a solver-specific stop reason, or "" to continue;
// it must not mutate the state.
type Solver[S State] interface {
	Name() string
	Init(ctx context.Context, p *Problem, state S) (S, KV, error)
	NextIter(ctx context.Context, p *Problem, state S) (S, KV, error)
	Terminate(state S) TerminationReason
}
