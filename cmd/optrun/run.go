package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cwbudde/optrun/internal/run"
)

var (
	runConfigPath string
	runID         string
	runObjective  string
	runDim        int
	runX0         []float64
	runSolver     string
	runSeed       int64
	runWorkers    int

	runStepSize     float64
	runGradTol      float64
	runInitStep     float64
	runLineMaxIters uint64
	runSimplexTol   float64
	runPopSize      int
	runLower        []float64
	runUpper        []float64
	runInitTemp     float64
	runSchedule     string
	runCoolFactor   float64

	runMaxIters     uint64
	runMaxCostEvals uint64
	runMaxGradEvals uint64
	runMaxHessEvals uint64
	runMaxSeconds   float64
	runTargetCost   float64
	runTargetTol    float64
	runPatience     uint64

	runDataDir         string
	runCheckpointEvery uint64
	runKeep            int
	runTrace           bool
	runObserveEvery    uint64
	runQuiet           bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization to termination",
	Long: `Runs one optimization described by flags or a YAML spec file and prints
the outcome as JSON. Flags override fields loaded from --config.`,
	RunE: runOptimization,
}

func init() {
	f := runCmd.Flags()

	f.StringVar(&runConfigPath, "config", "", "YAML spec file (flags override its fields)")
	f.StringVar(&runID, "run-id", "", "Run ID (default: random UUID)")
	f.StringVar(&runObjective, "objective", "", "Objective function (sphere, quadratic, rosenbrock, rastrigin, himmelblau)")
	f.IntVar(&runDim, "dim", 0, "Problem dimension (default: inferred)")
	f.Float64SliceVar(&runX0, "x0", nil, "Starting point, comma separated")
	f.StringVar(&runSolver, "solver", "", "Solver (gd, bfgs, neldermead, pso, anneal)")
	f.Int64Var(&runSeed, "seed", 0, "Random seed for stochastic solvers")
	f.IntVar(&runWorkers, "workers", 0, "Parallel objective evaluations per iteration")

	f.Float64Var(&runStepSize, "step-size", 0, "Step size (gd, anneal)")
	f.Float64Var(&runGradTol, "grad-tol", 0, "Gradient norm tolerance (gd, bfgs)")
	f.Float64Var(&runInitStep, "init-step", 0, "Initial line search step (bfgs)")
	f.Uint64Var(&runLineMaxIters, "line-max-iters", 0, "Line search iteration cap (bfgs)")
	f.Float64Var(&runSimplexTol, "simplex-tol", 0, "Simplex spread tolerance (neldermead)")
	f.IntVar(&runPopSize, "pop", 0, "Population size (pso)")
	f.Float64SliceVar(&runLower, "lower", nil, "Lower bounds, comma separated (pso)")
	f.Float64SliceVar(&runUpper, "upper", nil, "Upper bounds, comma separated (pso)")
	f.Float64Var(&runInitTemp, "init-temp", 0, "Initial temperature (anneal)")
	f.StringVar(&runSchedule, "schedule", "", "Cooling schedule: geometric, fast, boltzmann (anneal)")
	f.Float64Var(&runCoolFactor, "cool-factor", 0, "Geometric cooling factor (anneal)")

	f.Uint64Var(&runMaxIters, "iters", 0, "Max iterations (default 1000)")
	f.Uint64Var(&runMaxCostEvals, "max-cost-evals", 0, "Max cost evaluations (0 = unlimited)")
	f.Uint64Var(&runMaxGradEvals, "max-grad-evals", 0, "Max gradient evaluations (0 = unlimited)")
	f.Uint64Var(&runMaxHessEvals, "max-hess-evals", 0, "Max Hessian evaluations (0 = unlimited)")
	f.Float64Var(&runMaxSeconds, "max-seconds", 0, "Wall clock budget in seconds (0 = unlimited)")
	f.Float64Var(&runTargetCost, "target-cost", 0, "Stop once cost reaches this value")
	f.Float64Var(&runTargetTol, "target-tol", 0, "Stop within this distance of the target cost")
	f.Uint64Var(&runPatience, "patience", 0, "Stop after this many iterations without improvement")

	f.StringVar(&runDataDir, "data-dir", "", "Base directory for checkpoints and traces (default data)")
	f.Uint64Var(&runCheckpointEvery, "checkpoint-every", 0, "Checkpoint cadence in iterations (0 disables)")
	f.IntVar(&runKeep, "keep", 0, "Checkpoints retained per run (0 keeps all)")
	f.BoolVar(&runTrace, "trace", false, "Write a JSONL cost trace")
	f.Uint64Var(&runObserveEvery, "observe-every", 0, "Progress log cadence in iterations (0 logs every iteration)")
	f.BoolVar(&runQuiet, "quiet", false, "Suppress progress logging")

	rootCmd.AddCommand(runCmd)
}

// buildRunSpec assembles the spec for the run command: the YAML file
// first when given, then every flag the user actually set on top.
func buildRunSpec(flags *pflag.FlagSet) (*run.Spec, error) {
	spec := &run.Spec{}
	if runConfigPath != "" {
		loaded, err := run.LoadSpec(runConfigPath)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}
	applyRunFlags(flags, spec)
	return spec, nil
}

func applyRunFlags(flags *pflag.FlagSet, spec *run.Spec) {
	if flags.Changed("run-id") {
		spec.RunID = runID
	}
	if flags.Changed("objective") {
		spec.Objective = runObjective
	}
	if flags.Changed("dim") {
		spec.Dim = runDim
	}
	if flags.Changed("x0") {
		spec.X0 = runX0
	}
	if flags.Changed("solver") {
		spec.Solver = runSolver
	}
	if flags.Changed("seed") {
		spec.Seed = runSeed
	}
	if flags.Changed("workers") {
		spec.Workers = runWorkers
	}
	if flags.Changed("step-size") {
		spec.StepSize = runStepSize
	}
	if flags.Changed("grad-tol") {
		spec.GradTol = runGradTol
	}
	if flags.Changed("init-step") {
		spec.InitStep = runInitStep
	}
	if flags.Changed("line-max-iters") {
		spec.LineMaxIters = runLineMaxIters
	}
	if flags.Changed("simplex-tol") {
		spec.SimplexTol = runSimplexTol
	}
	if flags.Changed("pop") {
		spec.PopSize = runPopSize
	}
	if flags.Changed("lower") {
		spec.Lower = runLower
	}
	if flags.Changed("upper") {
		spec.Upper = runUpper
	}
	if flags.Changed("init-temp") {
		spec.InitTemp = runInitTemp
	}
	if flags.Changed("schedule") {
		spec.Schedule = runSchedule
	}
	if flags.Changed("cool-factor") {
		spec.CoolFactor = runCoolFactor
	}
	if flags.Changed("iters") {
		spec.MaxIters = runMaxIters
	}
	if flags.Changed("max-cost-evals") {
		spec.MaxCostEvals = runMaxCostEvals
	}
	if flags.Changed("max-grad-evals") {
		spec.MaxGradEvals = runMaxGradEvals
	}
	if flags.Changed("max-hess-evals") {
		spec.MaxHessEvals = runMaxHessEvals
	}
	if flags.Changed("max-seconds") {
		spec.MaxSeconds = runMaxSeconds
	}
	if flags.Changed("target-cost") {
		target := runTargetCost
		spec.TargetCost = &target
	}
	if flags.Changed("target-tol") {
		spec.TargetTol = runTargetTol
	}
	if flags.Changed("patience") {
		spec.Patience = runPatience
	}
	if flags.Changed("data-dir") {
		spec.DataDir = runDataDir
	}
	if flags.Changed("checkpoint-every") {
		spec.CheckpointEvery = runCheckpointEvery
	}
	if flags.Changed("keep") {
		spec.KeepCheckpoints = runKeep
	}
	if flags.Changed("trace") {
		spec.Trace = runTrace
	}
	if flags.Changed("observe-every") {
		spec.ObserveEvery = runObserveEvery
	}
	if flags.Changed("quiet") {
		spec.Quiet = runQuiet
	}
}

func runOptimization(cmd *cobra.Command, args []string) error {
	spec, err := buildRunSpec(cmd.Flags())
	if err != nil {
		return err
	}

	job, err := run.Build(spec)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, execErr := job.Execute(ctx, run.Options{})
	if out != nil {
		printOutcome(out)
	}
	return execErr
}

func printOutcome(out *run.Outcome) {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", out)
		return
	}
	fmt.Println(string(data))
}
