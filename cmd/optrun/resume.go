package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/run"
	"github.com/cwbudde/optrun/internal/store"
)

var (
	resumeDataDir     string
	resumeIteration   uint64
	resumeExtendIters uint64
	resumeMaxSeconds  float64
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run from its checkpoint",
	Long: `Continues an interrupted run from its latest checkpoint, or from a
specific iteration with --iteration. The spec embedded in the checkpoint
drives the continuation; --extend-iters and --max-seconds widen a budget
the original run already used up.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "data", "Base directory for checkpoint storage")
	resumeCmd.Flags().Uint64Var(&resumeIteration, "iteration", 0, "Checkpoint iteration to resume from (0 = latest)")
	resumeCmd.Flags().Uint64Var(&resumeExtendIters, "extend-iters", 0, "Run this many iterations beyond the checkpoint")
	resumeCmd.Flags().Float64Var(&resumeMaxSeconds, "max-seconds", 0, "Replace the total wall clock budget in seconds")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	id := args[0]

	fs, err := store.NewFSStore(resumeDataDir, 0)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	var env *store.Envelope
	if resumeIteration > 0 {
		env, err = fs.Load(id, resumeIteration)
	} else {
		env, err = fs.LoadLatest(id)
	}
	if err != nil {
		return err
	}

	opts := run.Options{Store: fs}
	if resumeExtendIters > 0 || resumeMaxSeconds > 0 {
		policy, err := extendedPolicy(env, resumeExtendIters, resumeMaxSeconds)
		if err != nil {
			return err
		}
		opts.Policy = policy
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, execErr := run.Resume(ctx, env, opts)
	if out != nil {
		printOutcome(out)
	}
	return execErr
}

// extendedPolicy derives the continuation's termination policy from the
// spec saved in the envelope, with the requested budget extensions
// applied on top.
func extendedPolicy(env *store.Envelope, extendIters uint64, maxSeconds float64) (*engine.Policy, error) {
	var spec run.Spec
	if err := json.Unmarshal(env.Spec, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode embedded spec: %w", err)
	}
	spec.Normalize()

	policy := spec.Policy()
	if extendIters > 0 {
		policy.MaxIters = env.Iteration + extendIters
	}
	if maxSeconds > 0 {
		policy.MaxDuration = time.Duration(maxSeconds * float64(time.Second))
	}
	return &policy, nil
}
