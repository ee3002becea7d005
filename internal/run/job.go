// Package run assembles specs into executable optimization runs: it
// builds the problem, solver and typed executor behind a non-generic
// Job, wires the spec-driven observers and checkpointing, and turns
// results into flat outcomes the CLI and server can print or serve.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/objective"
	"github.com/cwbudde/optrun/internal/observers"
	"github.com/cwbudde/optrun/internal/solver"
	"github.com/cwbudde/optrun/internal/store"
)

// Observation pairs an observer with its cadence for registration.
type Observation struct {
	Observer  engine.Observer
	Mode      engine.ObserverMode
	Mandatory bool
}

// Options adjusts a single execution beyond what the spec encodes.
type Options struct {
	// Observers are registered after the spec-driven ones, in order.
	Observers []Observation

	// Store overrides the spec-derived artifact store. When nil and the
	// spec enables checkpoints or traces, an FSStore is created under
	// spec.DataDir.
	Store *store.FSStore

	// Policy replaces the spec's policy for this execution, e.g. to cut
	// a run short or extend a resumed budget.
	Policy *engine.Policy

	// AppendTrace reopens the trace file instead of truncating it.
	// Resume sets it so one file spans the whole run.
	AppendTrace bool
}

// runner is the solver-family-agnostic surface of a typed executor.
type runner interface {
	withPolicy(engine.Policy)
	observe(engine.Observer, engine.ObserverMode, bool)
	checkpoint(engine.Checkpointer, bool)
	run(ctx context.Context) (engine.State, engine.Phase, error)
}

type typedJob[S engine.State] struct {
	exec *engine.Executor[S]
}

func (t *typedJob[S]) withPolicy(p engine.Policy) { t.exec.WithPolicy(p) }

func (t *typedJob[S]) observe(obs engine.Observer, mode engine.ObserverMode, mandatory bool) {
	if mandatory {
		t.exec.ObserveMandatory(obs, mode)
	} else {
		t.exec.Observe(obs, mode)
	}
}

func (t *typedJob[S]) checkpoint(cp engine.Checkpointer, mandatory bool) {
	if mandatory {
		t.exec.CheckpointMandatory(cp)
	} else {
		t.exec.Checkpoint(cp)
	}
}

func (t *typedJob[S]) run(ctx context.Context) (engine.State, engine.Phase, error) {
	res, err := t.exec.Run(ctx)
	return res.State(), res.Phase(), err
}

// Job is a fully assembled run. The concrete solver and state types
// are fixed at build time; everything after that operates through the
// family-agnostic runner.
type Job struct {
	spec    *Spec
	problem *engine.Problem
	runner  runner
}

// Spec returns the normalized spec the job was built from.
func (j *Job) Spec() *Spec { return j.spec }

func newJob[S engine.State](spec *Spec, problem *engine.Problem, s engine.Solver[S], st S) *Job {
	exec := engine.NewExecutor(s, problem, st).WithPolicy(spec.Policy())
	return &Job{spec: spec, problem: problem, runner: &typedJob[S]{exec: exec}}
}

// Build normalizes and validates the spec, then assembles the problem,
// solver and executor for it.
func Build(spec *Spec) (*Job, error) {
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return assemble(spec, nil)
}

// assemble constructs the configured solver and a state for it. A
// non-nil envelope overlays a checkpointed snapshot on both, turning
// the job into a continuation.
func assemble(spec *Spec, env *store.Envelope) (*Job, error) {
	obj, err := objective.ByName(spec.Objective, spec.Dim)
	if err != nil {
		return nil, err
	}
	problem := engine.NewProblem(obj, spec.Workers)

	switch spec.Solver {
	case solver.NameGD:
		s := solver.NewGradientDescent()
		if spec.StepSize > 0 {
			s.StepSize = spec.StepSize
		}
		if spec.GradTol > 0 {
			s.GradTol = spec.GradTol
		}
		st := engine.NewIterState(spec.X0)
		if err := restore(env, s, st, problem); err != nil {
			return nil, err
		}
		return newJob(spec, problem, s, st), nil

	case solver.NameBFGS:
		s := solver.NewBFGS()
		if spec.GradTol > 0 {
			s.GradTol = spec.GradTol
		}
		if spec.InitStep > 0 {
			s.LineInitStep = spec.InitStep
		}
		if spec.LineMaxIters > 0 {
			s.LineMaxIters = spec.LineMaxIters
		}
		st := engine.NewIterState(spec.X0)
		if err := restore(env, s, st, problem); err != nil {
			return nil, err
		}
		return newJob(spec, problem, s, st), nil

	case solver.NameNelderMead:
		s := solver.NewNelderMead()
		if spec.SimplexTol > 0 {
			s.Tol = spec.SimplexTol
		}
		st := engine.NewSimplexState(spec.X0)
		if err := restore(env, s, st, problem); err != nil {
			return nil, err
		}
		return newJob(spec, problem, s, st), nil

	case solver.NamePSO:
		lower, upper := spec.Lower, spec.Upper
		if len(lower) == 0 {
			lower, upper = obj.DefaultBounds(spec.Dim)
		}
		s := solver.NewParticleSwarm(lower, upper, spec.PopSize, spec.Seed)
		st := engine.NewPopulationState(spec.X0)
		if err := restore(env, s, st, problem); err != nil {
			return nil, err
		}
		return newJob(spec, problem, s, st), nil

	case solver.NameAnneal:
		s := solver.NewSimulatedAnnealing(spec.Seed)
		if spec.InitTemp > 0 {
			s.InitTemp = spec.InitTemp
		}
		if spec.Schedule != "" {
			s.Schedule = spec.Schedule
		}
		if spec.CoolFactor > 0 {
			s.Factor = spec.CoolFactor
		}
		if spec.StepSize > 0 {
			s.StepSize = spec.StepSize
		}
		st := engine.NewIterState(spec.X0)
		if err := restore(env, s, st, problem); err != nil {
			return nil, err
		}
		return newJob(spec, problem, s, st), nil
	}

	return nil, &store.ValidationError{
		Field:  "solver",
		Reason: fmt.Sprintf("no assembly for %q", spec.Solver),
	}
}

// restore overlays a checkpointed snapshot onto the configured solver
// and its fresh state. A nil envelope leaves both as built.
func restore(env *store.Envelope, solverPtr any, st engine.State, problem *engine.Problem) error {
	if env == nil {
		return nil
	}
	if err := json.Unmarshal(env.SolverState, solverPtr); err != nil {
		return fmt.Errorf("failed to restore solver state: %w", err)
	}
	if err := json.Unmarshal(env.State, st); err != nil {
		return fmt.Errorf("failed to restore run state: %w", err)
	}

	// The snapshot recorded the interrupted run's termination and
	// evaluation counters; the continuation starts unterminated with
	// the counters carried over.
	c := st.Common()
	c.Status = engine.TerminationStatus{}
	problem.SetCounts(c.FuncCounts)
	return nil
}

// Execute wires the spec-driven observers and checkpointing plus the
// options' extras, then runs the job to its terminal phase. The
// returned outcome is non-nil whenever the run started; the error is
// non-nil exactly when the run failed.
func (j *Job) Execute(ctx context.Context, opts Options) (*Outcome, error) {
	spec := j.spec
	if opts.Policy != nil {
		j.runner.withPolicy(*opts.Policy)
	}

	fs := opts.Store
	if fs == nil && (spec.CheckpointEvery > 0 || spec.Trace) {
		var err error
		fs, err = store.NewFSStore(spec.DataDir, spec.KeepCheckpoints)
		if err != nil {
			return nil, err
		}
	}

	if !spec.Quiet {
		mode := engine.ModeAlways()
		if spec.ObserveEvery > 0 {
			mode = engine.ModeEvery(spec.ObserveEvery)
		}
		j.runner.observe(observers.NewSlog(), mode, false)
	}

	if spec.Trace {
		tw, err := store.NewTraceWriter(fs.BaseDir(), spec.RunID, opts.AppendTrace)
		if err != nil {
			return nil, err
		}
		defer tw.Close()
		j.runner.observe(observers.NewTrace(tw), engine.ModeAlways(), false)
	}

	if spec.CheckpointEvery > 0 {
		specRaw, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize spec: %w", err)
		}
		cp := store.NewFileCheckpointer(fs, spec.RunID, spec.Solver, specRaw,
			engine.CheckpointEvery(spec.CheckpointEvery))
		j.runner.checkpoint(cp, true)
	}

	for _, o := range opts.Observers {
		j.runner.observe(o.Observer, o.Mode, o.Mandatory)
	}

	slog.Info("Starting run",
		"runId", spec.RunID, "solver", spec.Solver, "objective", spec.Objective, "dim", spec.Dim)

	st, phase, err := j.runner.run(ctx)
	out := newOutcome(spec, st, phase, err)
	if err != nil {
		slog.Error("Run failed", "runId", spec.RunID, "error", err)
		return out, err
	}

	slog.Info("Run complete",
		"runId", spec.RunID, "reason", out.Reason, "iterations", out.Iterations,
		"best_cost", out.BestCost)
	return out, nil
}
