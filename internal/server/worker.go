package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/observers"
	"github.com/cwbudde/optrun/internal/run"
)

// runJob executes an optimization job in the background. The run's
// progress flows back through a stream observer; checkpoints and traces
// are written through the server's store when the job's spec enables
// them, and the run's metrics are exported on /metrics while it lives.
func runJob(ctx context.Context, jm *JobManager, s *Server, jobID string) error {
	job, exists := jm.Snapshot(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if job.Terminal() {
		// Cancelled before the worker got scheduled.
		return nil
	}

	// The job context is the cancellation channel for DELETE requests;
	// the run sees it at its next iteration boundary.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jm.bindCancel(jobID, cancel)
	defer jm.releaseCancel(jobID)

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
		j.StartTime = time.Now()
	}); err != nil {
		return err
	}

	slog.Info("Starting job",
		"job_id", jobID, "solver", job.Spec.Solver, "objective", job.Spec.Objective)

	rj, err := run.Build(&job.Spec)
	if err != nil {
		markJobFailed(jm, jobID, err)
		broadcastTerminal(jm, jobID)
		return err
	}

	opts := run.Options{
		Store:     s.store,
		Observers: []run.Observation{{Observer: newStreamObserver(jm, jobID), Mode: engine.ModeAlways()}},
	}
	if s.registry != nil {
		if pm, err := observers.NewPrometheus(s.registry, jobID); err != nil {
			slog.Warn("Failed to register run metrics", "job_id", jobID, "error", err)
		} else {
			opts.Observers = append(opts.Observers,
				run.Observation{Observer: pm, Mode: engine.ModeAlways()})
		}
	}

	out, err := rj.Execute(runCtx, opts)
	if err != nil {
		markJobFailed(jm, jobID, err)
		broadcastTerminal(jm, jobID)
		return err
	}

	endTime := time.Now()
	state := StateCompleted
	if out.Reason == engine.ExternalInterrupt {
		state = StateCancelled
	}
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = state
		j.Iter = out.Iterations
		j.BestCost = out.BestCost
		j.BestParam = out.BestParam
		j.Reason = string(out.Reason)
		j.Elapsed = time.Duration(out.ElapsedMS) * time.Millisecond
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Job finished",
		"job_id", jobID,
		"state", state,
		"reason", out.Reason,
		"iterations", out.Iterations,
		"best_cost", out.BestCost,
	)

	broadcastTerminal(jm, jobID)
	return nil
}

// broadcastTerminal pushes one last event carrying the job's terminal
// state, so subscribers see completed/failed/cancelled even though the
// run's own final observer fired while the state still read running.
func broadcastTerminal(jm *JobManager, jobID string) {
	job, exists := jm.Snapshot(jobID)
	if !exists {
		return
	}
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     jobID,
		State:     job.State,
		Iter:      job.Iter,
		Cost:      job.Cost,
		BestCost:  job.BestCost,
		Evals:     job.Evals,
		ElapsedMS: job.Elapsed.Milliseconds(),
		Reason:    job.Reason,
		Timestamp: time.Now(),
	})
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}
