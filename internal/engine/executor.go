package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Phase is the executor's lifecycle state. It advances in one
// direction: created, initializing, running, then either terminated or
// failed.
type Phase string

const (
	PhaseCreated      Phase = "created"
	PhaseInitializing Phase = "initializing"
	PhaseRunning      Phase = "running"
	PhaseTerminated   Phase = "terminated"
	PhaseFailed       Phase = "failed"
)

// Executor drives a solver over a problem: it owns the iteration loop,
// evaluation counting, best tracking, termination policy, observer
// fan-out, and checkpoint saves. Solvers only ever advance a single
// iteration; everything around that is the executor's job.
//
// The loop is single-threaded and synchronous. No iteration begins
// before the previous one, including its observer and checkpoint side
// effects, has completed. Solvers may fan evaluations out internally
// (see Problem.BulkCost) but must fan back in before returning.
type Executor[S State] struct {
	solver      Solver[S]
	problem     *Problem
	state       S
	policy      Policy
	observers   []observerReg
	checkpoints []checkpointReg

	phase      Phase
	finalFired bool
	result     *Result[S]
}

// NewExecutor wires a solver, a problem, and an initial (or restored)
// state together. The default policy never terminates; configure one
// with WithPolicy or rely on the solver's own Terminate.
func NewExecutor[S State](solver Solver[S], problem *Problem, state S) *Executor[S] {
	return &Executor[S]{
		solver:  solver,
		problem: problem,
		state:   state,
		policy:  DefaultPolicy(),
		phase:   PhaseCreated,
	}
}

// WithPolicy sets the termination policy.
func (e *Executor[S]) WithPolicy(p Policy) *Executor[S] {
	e.policy = p
	return e
}

// Observe registers an optional observer: its errors are logged and the
// run continues. Observers fire in registration order.
func (e *Executor[S]) Observe(obs Observer, mode ObserverMode) *Executor[S] {
	e.observers = append(e.observers, observerReg{obs: obs, mode: mode})
	return e
}

// ObserveMandatory registers an observer whose errors fail the run.
func (e *Executor[S]) ObserveMandatory(obs Observer, mode ObserverMode) *Executor[S] {
	e.observers = append(e.observers, observerReg{obs: obs, mode: mode, mandatory: true})
	return e
}

// Checkpoint registers an optional checkpointer: save errors are logged
// and the run continues.
func (e *Executor[S]) Checkpoint(cp Checkpointer) *Executor[S] {
	e.checkpoints = append(e.checkpoints, checkpointReg{cp: cp})
	return e
}

// CheckpointMandatory registers a checkpointer whose save errors fail
// the run.
func (e *Executor[S]) CheckpointMandatory(cp Checkpointer) *Executor[S] {
	e.checkpoints = append(e.checkpoints, checkpointReg{cp: cp, mandatory: true})
	return e
}

// Phase returns the executor's current lifecycle phase.
func (e *Executor[S]) Phase() Phase { return e.phase }

// State returns the executor's current state.
func (e *Executor[S]) State() S { return e.state }

// Run executes the optimization until the policy, the solver, or the
// context stops it. The result is cached: calling Run again returns the
// same result without touching the solver. A state that is already
// terminated (for example restored from a final checkpoint) is returned
// as-is without invoking the solver or any observer.
//
// Context cancellation is honored at the start of each loop iteration
// and surfaces as a Terminated result with reason external_interrupt,
// never as a failure. A failure (evaluation error, numerical error,
// mandatory observer or checkpoint error) preserves the best-so-far in
// the returned state and still fires final observers best-effort.
func (e *Executor[S]) Run(ctx context.Context) (*Result[S], error) {
	if e.result != nil {
		return e.result, e.result.err
	}

	c := e.state.Common()
	if c.Terminated() {
		e.phase = PhaseTerminated
		e.result = newResult(e.solver, e.state, PhaseTerminated, nil)
		return e.result, nil
	}

	// Back-dating the start preserves total elapsed time across resume.
	start := time.Now().Add(-c.Elapsed)

	// A state restored mid-run (Iter > 0) skips init entirely: the
	// solver's internals were restored alongside it, and re-running init
	// would re-evaluate the objective and fork the trajectory.
	if c.Iter == 0 {
		e.phase = PhaseInitializing
		state, kv, err := e.solver.Init(ctx, e.problem, e.state)
		if err != nil {
			reason := interruptReason(err)
			if reason == "" {
				return e.fail(FailureInit, 0, err)
			}
			c.MarkTerminated(reason)
			c.SyncCounts(e.problem)
		} else {
			e.state = state
			c = e.state.Common()
			c.SyncCounts(e.problem)
			c.Elapsed = time.Since(start)
			c.Update()
			if err := e.fireInit(kv); err != nil {
				return e.fail(FailureObserver, 0, err)
			}
		}
	}

	e.phase = PhaseRunning
	for !c.Terminated() {
		if ctx.Err() != nil {
			c.MarkTerminated(ExternalInterrupt)
			break
		}

		state, kv, err := e.solver.NextIter(ctx, e.problem, e.state)
		if err != nil {
			reason := interruptReason(err)
			if reason == "" {
				return e.fail(FailureIteration, c.Iter+1, err)
			}
			c.MarkTerminated(reason)
			c.SyncCounts(e.problem)
			break
		}
		e.state = state
		c = e.state.Common()

		c.Iter++
		c.SyncCounts(e.problem)
		c.Elapsed = time.Since(start)
		c.Update()

		if r := e.solver.Terminate(e.state); r != "" {
			c.MarkTerminated(r)
		} else if r := e.policy.Check(c); r != "" {
			c.MarkTerminated(r)
		}

		if err := e.fireIter(kv); err != nil {
			return e.fail(FailureObserver, c.Iter, err)
		}
		if err := e.saveCheckpoints(); err != nil {
			return e.fail(FailureCheckpoint, c.Iter, err)
		}
	}

	c.Elapsed = time.Since(start)
	e.phase = PhaseTerminated
	if err := e.fireFinal(true); err != nil {
		return e.fail(FailureObserver, c.Iter, err)
	}
	e.result = newResult(e.solver, e.state, PhaseTerminated, nil)
	return e.result, nil
}

// fail settles the run in the failed phase. Final observers still fire,
// best-effort, so trace files and streams record the outcome.
func (e *Executor[S]) fail(failure string, iter uint64, err error) (*Result[S], error) {
	runErr := &RunError{Failure: failure, Iter: iter, Err: err}
	e.phase = PhaseFailed
	e.fireFinal(false)
	e.result = newResult(e.solver, e.state, PhaseFailed, runErr)
	return e.result, runErr
}

func (e *Executor[S]) fireInit(kv KV) error {
	name := e.solver.Name()
	v := newView(name, e.phase, e.state.Common())
	for _, reg := range e.observers {
		if !reg.mode.fireInit() {
			continue
		}
		if err := reg.obs.ObserveInit(name, v, kv); err != nil {
			if reg.mandatory {
				return fmt.Errorf("observer %q failed on init: %w", reg.obs.Name(), err)
			}
			slog.Warn("observer failed on init", "observer", reg.obs.Name(), "error", err)
		}
	}
	return nil
}

func (e *Executor[S]) fireIter(kv KV) error {
	c := e.state.Common()
	v := newView(e.solver.Name(), e.phase, c)
	for _, reg := range e.observers {
		if !reg.mode.fireIter(c) {
			continue
		}
		if err := reg.obs.ObserveIter(v, kv); err != nil {
			if reg.mandatory {
				return fmt.Errorf("observer %q failed at iteration %d: %w", reg.obs.Name(), c.Iter, err)
			}
			slog.Warn("observer failed on iteration", "observer", reg.obs.Name(), "iter", c.Iter, "error", err)
		}
	}
	return nil
}

func (e *Executor[S]) fireFinal(strict bool) error {
	if e.finalFired {
		return nil
	}
	e.finalFired = true
	v := newView(e.solver.Name(), e.phase, e.state.Common())
	for _, reg := range e.observers {
		if !reg.mode.fireFinal() {
			continue
		}
		if err := reg.obs.ObserveFinal(v); err != nil {
			if strict && reg.mandatory {
				return fmt.Errorf("observer %q failed on final: %w", reg.obs.Name(), err)
			}
			slog.Warn("observer failed on final", "observer", reg.obs.Name(), "error", err)
		}
	}
	return nil
}

func (e *Executor[S]) saveCheckpoints() error {
	c := e.state.Common()
	for _, reg := range e.checkpoints {
		if !reg.cp.Frequency().ShouldSave(c.Iter) {
			continue
		}
		if err := reg.cp.Save(e.solver, e.state); err != nil {
			if reg.mandatory {
				return fmt.Errorf("checkpoint save at iteration %d: %w", c.Iter, err)
			}
			slog.Warn("checkpoint save failed", "iter", c.Iter, "error", err)
		}
	}
	return nil
}

// interruptReason maps errors that end a run in the terminated phase
// instead of the failed one. Everything else is a genuine failure.
func interruptReason(err error) TerminationReason {
	switch {
	case errors.Is(err, ErrLineSearchFailed):
		return LineSearchFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ExternalInterrupt
	}
	return ""
}
