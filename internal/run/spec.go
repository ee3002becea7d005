package run

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/objective"
	"github.com/cwbudde/optrun/internal/solver"
	"github.com/cwbudde/optrun/internal/store"
)

// Spec is the complete configuration of a run: objective, solver,
// termination limits and artifact settings, in one flat struct shared
// by the CLI, the server API and the checkpoint envelope. Zero values
// mean "use the default"; Normalize fills them in.
type Spec struct {
	RunID     string    `yaml:"runId" json:"runId,omitempty"`
	Objective string    `yaml:"objective" json:"objective"`
	Dim       int       `yaml:"dim" json:"dim,omitempty"`
	X0        []float64 `yaml:"x0" json:"x0,omitempty"`
	Solver    string    `yaml:"solver" json:"solver"`
	Seed      int64     `yaml:"seed" json:"seed,omitempty"`

	// Workers bounds the parallel objective evaluations per iteration.
	Workers int `yaml:"workers" json:"workers,omitempty"`

	// Solver parameters. Each applies to the solvers that read it; the
	// rest ignore it.
	StepSize     float64   `yaml:"stepSize" json:"stepSize,omitempty"`         // gd, anneal
	GradTol      float64   `yaml:"gradTol" json:"gradTol,omitempty"`           // gd, bfgs
	InitStep     float64   `yaml:"initStep" json:"initStep,omitempty"`         // bfgs line search
	LineMaxIters uint64    `yaml:"lineMaxIters" json:"lineMaxIters,omitempty"` // bfgs line search
	SimplexTol   float64   `yaml:"simplexTol" json:"simplexTol,omitempty"`     // neldermead
	PopSize      int       `yaml:"popSize" json:"popSize,omitempty"`           // pso
	Lower        []float64 `yaml:"lower" json:"lower,omitempty"`               // pso bounds
	Upper        []float64 `yaml:"upper" json:"upper,omitempty"`               // pso bounds
	InitTemp     float64   `yaml:"initTemp" json:"initTemp,omitempty"`         // anneal
	Schedule     string    `yaml:"schedule" json:"schedule,omitempty"`         // anneal cooling
	CoolFactor   float64   `yaml:"coolFactor" json:"coolFactor,omitempty"`     // anneal geometric factor

	// Termination limits. Zero disables each limit.
	MaxIters     uint64   `yaml:"maxIters" json:"maxIters,omitempty"`
	MaxCostEvals uint64   `yaml:"maxCostEvals" json:"maxCostEvals,omitempty"`
	MaxGradEvals uint64   `yaml:"maxGradEvals" json:"maxGradEvals,omitempty"`
	MaxHessEvals uint64   `yaml:"maxHessEvals" json:"maxHessEvals,omitempty"`
	MaxSeconds   float64  `yaml:"maxSeconds" json:"maxSeconds,omitempty"`
	TargetCost   *float64 `yaml:"targetCost" json:"targetCost,omitempty"`
	TargetTol    float64  `yaml:"targetTol" json:"targetTol,omitempty"`
	Patience     uint64   `yaml:"patience" json:"patience,omitempty"`

	// Artifact settings.
	DataDir         string `yaml:"dataDir" json:"dataDir,omitempty"`
	CheckpointEvery uint64 `yaml:"checkpointEvery" json:"checkpointEvery,omitempty"` // 0 disables checkpointing
	KeepCheckpoints int    `yaml:"keepCheckpoints" json:"keepCheckpoints,omitempty"` // 0 keeps all
	Trace           bool   `yaml:"trace" json:"trace,omitempty"`
	ObserveEvery    uint64 `yaml:"observeEvery" json:"observeEvery,omitempty"` // progress log cadence, 0 logs every iteration
	Quiet           bool   `yaml:"quiet" json:"quiet,omitempty"`               // suppress progress logging
}

// LoadSpec reads a spec from a YAML file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse spec file: %w", err)
	}
	return &spec, nil
}

// Normalize fills defaulted fields in place: run ID, objective and
// solver names, dimension (from x0, bounds or the objective), starting
// point, worker count, iteration cap and data directory.
func (s *Spec) Normalize() {
	if s.RunID == "" {
		s.RunID = uuid.New().String()
	}
	if s.Objective == "" {
		s.Objective = "sphere"
	}
	if s.Solver == "" {
		s.Solver = solver.NameGD
	}
	if s.Dim == 0 {
		switch {
		case len(s.X0) > 0:
			s.Dim = len(s.X0)
		case len(s.Lower) > 0:
			s.Dim = len(s.Lower)
		default:
			if obj, err := objective.ByName(s.Objective, 0); err == nil && obj.Dim() > 0 {
				s.Dim = obj.Dim()
			} else {
				s.Dim = 2
			}
		}
	}
	if len(s.X0) == 0 {
		s.X0 = make([]float64, s.Dim)
	}
	if s.Workers == 0 {
		s.Workers = 1
	}
	if s.MaxIters == 0 {
		s.MaxIters = 1000
	}
	if s.DataDir == "" {
		s.DataDir = "data"
	}
}

// Validate checks the spec for contradictions. It reports the first
// problem as a store.ValidationError naming the offending field.
func (s *Spec) Validate() error {
	if s.RunID == "" {
		return &store.ValidationError{Field: "runId", Reason: "cannot be empty"}
	}
	if _, err := solver.Kind(s.Solver); err != nil {
		return &store.ValidationError{Field: "solver", Reason: err.Error()}
	}
	if s.Solver == solver.NameBacktracking {
		return &store.ValidationError{Field: "solver", Reason: "backtracking is the nested line search; run bfgs instead"}
	}
	if s.Dim < 1 {
		return &store.ValidationError{Field: "dim", Reason: "must be at least 1"}
	}
	if _, err := objective.ByName(s.Objective, s.Dim); err != nil {
		return &store.ValidationError{Field: "objective", Reason: err.Error()}
	}
	if len(s.X0) != s.Dim {
		return &store.ValidationError{
			Field:  "x0",
			Reason: fmt.Sprintf("length %d does not match dim %d", len(s.X0), s.Dim),
		}
	}
	if len(s.Lower) != len(s.Upper) {
		return &store.ValidationError{Field: "lower", Reason: "bounds must have matching lengths"}
	}
	if len(s.Lower) > 0 && len(s.Lower) != s.Dim {
		return &store.ValidationError{
			Field:  "lower",
			Reason: fmt.Sprintf("bounds length %d does not match dim %d", len(s.Lower), s.Dim),
		}
	}
	if s.PopSize < 0 {
		return &store.ValidationError{Field: "popSize", Reason: "cannot be negative"}
	}
	if s.Workers < 1 {
		return &store.ValidationError{Field: "workers", Reason: "must be at least 1"}
	}
	if s.MaxIters == 0 {
		return &store.ValidationError{Field: "maxIters", Reason: "must be positive"}
	}
	if s.MaxSeconds < 0 {
		return &store.ValidationError{Field: "maxSeconds", Reason: "cannot be negative"}
	}
	if s.TargetTol < 0 {
		return &store.ValidationError{Field: "targetTol", Reason: "cannot be negative"}
	}
	switch s.Schedule {
	case "", solver.ScheduleGeometric, solver.ScheduleFast, solver.ScheduleBoltzmann:
	default:
		return &store.ValidationError{
			Field:  "schedule",
			Reason: fmt.Sprintf("unknown cooling schedule %q", s.Schedule),
		}
	}
	if (s.CheckpointEvery > 0 || s.Trace) && s.DataDir == "" {
		return &store.ValidationError{Field: "dataDir", Reason: "required for checkpoints or traces"}
	}
	return nil
}

// Policy maps the spec's termination limits onto an engine policy.
func (s *Spec) Policy() engine.Policy {
	return engine.Policy{
		MaxIters:     s.MaxIters,
		MaxCostEvals: s.MaxCostEvals,
		MaxGradEvals: s.MaxGradEvals,
		MaxHessEvals: s.MaxHessEvals,
		MaxDuration:  time.Duration(s.MaxSeconds * float64(time.Second)),
		TargetCost:   s.TargetCost,
		TargetTol:    s.TargetTol,
		Patience:     s.Patience,
	}
}
