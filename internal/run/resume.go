package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cwbudde/optrun/internal/store"
)

// Resume rebuilds the run a checkpoint envelope recorded and continues
// it to termination. The spec embedded at save time drives the rebuild,
// so the continuation sees the same solver configuration, policy and
// artifact wiring as the interrupted run; opts can still override the
// policy to extend a budget the original already exhausted. The trace
// file, when enabled, is appended to rather than truncated.
func Resume(ctx context.Context, env *store.Envelope, opts Options) (*Outcome, error) {
	if env == nil {
		return nil, &store.ValidationError{Field: "envelope", Reason: "no envelope to resume from"}
	}
	if len(env.Spec) == 0 {
		return nil, &store.ValidationError{Field: "spec", Reason: "envelope carries no run spec"}
	}

	spec := &Spec{}
	if err := json.Unmarshal(env.Spec, spec); err != nil {
		return nil, fmt.Errorf("failed to decode embedded spec: %w", err)
	}
	spec.Normalize()
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := env.CompatibleWith(spec.Solver); err != nil {
		return nil, err
	}

	// The envelope header is authoritative for identity; an embedded
	// spec edited after the fact must not fork the run's artifacts.
	spec.RunID = env.RunID

	job, err := assemble(spec, env)
	if err != nil {
		return nil, err
	}

	opts.AppendTrace = true
	slog.Info("Resuming run",
		"runId", spec.RunID, "solver", spec.Solver, "iteration", env.Iteration,
		"best_cost", env.BestCost)
	return job.Execute(ctx, opts)
}
