package run

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/optrun/internal/solver"
	"github.com/cwbudde/optrun/internal/store"
)

// validSpec returns a normalized spec that passes validation, for
// tests that break one field at a time.
func validSpec() *Spec {
	spec := &Spec{
		RunID:     "run-valid",
		Objective: "sphere",
		Solver:    solver.NameGD,
	}
	spec.Normalize()
	return spec
}

func TestLoadSpec_ParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.yaml")

	doc := `runId: run-yaml
objective: rosenbrock
dim: 2
x0: [-1.2, 1.0]
solver: bfgs
seed: 7
workers: 2
gradTol: 1.0e-8
maxIters: 250
maxSeconds: 1.5
targetCost: 0.5
targetTol: 1.0e-6
dataDir: out
checkpointEvery: 10
keepCheckpoints: 3
trace: true
observeEvery: 5
quiet: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("Failed to write spec file: %v", err)
	}

	spec, err := LoadSpec(path)
	if err != nil {
		t.Fatalf("Failed to load spec: %v", err)
	}

	if spec.RunID != "run-yaml" {
		t.Errorf("Expected runId run-yaml, got %q", spec.RunID)
	}
	if spec.Objective != "rosenbrock" {
		t.Errorf("Expected objective rosenbrock, got %q", spec.Objective)
	}
	if spec.Dim != 2 {
		t.Errorf("Expected dim 2, got %d", spec.Dim)
	}
	if len(spec.X0) != 2 || spec.X0[0] != -1.2 || spec.X0[1] != 1.0 {
		t.Errorf("Unexpected x0: %v", spec.X0)
	}
	if spec.Solver != solver.NameBFGS {
		t.Errorf("Expected solver bfgs, got %q", spec.Solver)
	}
	if spec.Seed != 7 {
		t.Errorf("Expected seed 7, got %d", spec.Seed)
	}
	if spec.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", spec.Workers)
	}
	if spec.GradTol != 1e-8 {
		t.Errorf("Expected gradTol 1e-8, got %v", spec.GradTol)
	}
	if spec.MaxIters != 250 {
		t.Errorf("Expected maxIters 250, got %d", spec.MaxIters)
	}
	if spec.MaxSeconds != 1.5 {
		t.Errorf("Expected maxSeconds 1.5, got %v", spec.MaxSeconds)
	}
	if spec.TargetCost == nil || *spec.TargetCost != 0.5 {
		t.Errorf("Expected targetCost 0.5, got %v", spec.TargetCost)
	}
	if spec.TargetTol != 1e-6 {
		t.Errorf("Expected targetTol 1e-6, got %v", spec.TargetTol)
	}
	if spec.DataDir != "out" {
		t.Errorf("Expected dataDir out, got %q", spec.DataDir)
	}
	if spec.CheckpointEvery != 10 {
		t.Errorf("Expected checkpointEvery 10, got %d", spec.CheckpointEvery)
	}
	if spec.KeepCheckpoints != 3 {
		t.Errorf("Expected keepCheckpoints 3, got %d", spec.KeepCheckpoints)
	}
	if !spec.Trace {
		t.Error("Expected trace to be enabled")
	}
	if spec.ObserveEvery != 5 {
		t.Errorf("Expected observeEvery 5, got %d", spec.ObserveEvery)
	}
	if !spec.Quiet {
		t.Error("Expected quiet to be set")
	}
}

func TestLoadSpec_MissingFile(t *testing.T) {
	_, err := LoadSpec(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing spec file")
	}
}

func TestLoadSpec_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("solver: [unclosed\n"), 0o644); err != nil {
		t.Fatalf("Failed to write spec file: %v", err)
	}

	if _, err := LoadSpec(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestSpec_NormalizeDefaults(t *testing.T) {
	spec := &Spec{}
	spec.Normalize()

	if spec.RunID == "" {
		t.Error("Expected a generated run ID")
	}
	if spec.Objective != "sphere" {
		t.Errorf("Expected default objective sphere, got %q", spec.Objective)
	}
	if spec.Solver != solver.NameGD {
		t.Errorf("Expected default solver gd, got %q", spec.Solver)
	}
	if spec.Dim != 2 {
		t.Errorf("Expected default dim 2, got %d", spec.Dim)
	}
	if len(spec.X0) != 2 || spec.X0[0] != 0 || spec.X0[1] != 0 {
		t.Errorf("Expected zero starting point of length 2, got %v", spec.X0)
	}
	if spec.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", spec.Workers)
	}
	if spec.MaxIters != 1000 {
		t.Errorf("Expected default maxIters 1000, got %d", spec.MaxIters)
	}
	if spec.DataDir != "data" {
		t.Errorf("Expected default dataDir data, got %q", spec.DataDir)
	}
}

func TestSpec_NormalizeInfersDim(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want int
	}{
		{"from x0", Spec{X0: []float64{1, 2, 3}}, 3},
		{"from bounds", Spec{Lower: []float64{-1, -1, -1, -1}, Upper: []float64{1, 1, 1, 1}}, 4},
		{"from fixed-dimension objective", Spec{Objective: "himmelblau"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.spec.Normalize()
			if tt.spec.Dim != tt.want {
				t.Errorf("Expected dim %d, got %d", tt.want, tt.spec.Dim)
			}
			if len(tt.spec.X0) != tt.want {
				t.Errorf("Expected x0 of length %d, got %v", tt.want, tt.spec.X0)
			}
		})
	}
}

func TestSpec_NormalizeKeepsExplicitValues(t *testing.T) {
	spec := &Spec{
		RunID:     "run-explicit",
		Objective: "rastrigin",
		Dim:       3,
		X0:        []float64{1, 2, 3},
		Solver:    solver.NameAnneal,
		Workers:   4,
		MaxIters:  50,
		DataDir:   "elsewhere",
	}
	spec.Normalize()

	if spec.RunID != "run-explicit" || spec.Objective != "rastrigin" ||
		spec.Dim != 3 || spec.Solver != solver.NameAnneal ||
		spec.Workers != 4 || spec.MaxIters != 50 || spec.DataDir != "elsewhere" {
		t.Errorf("Normalize overwrote explicit values: %+v", spec)
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *Spec)
		wantField string
	}{
		{"empty run ID", func(s *Spec) { s.RunID = "" }, "runId"},
		{"unknown solver", func(s *Spec) { s.Solver = "simplex2" }, "solver"},
		{"backtracking is internal", func(s *Spec) { s.Solver = solver.NameBacktracking }, "solver"},
		{"negative dim", func(s *Spec) { s.Dim = -1 }, "dim"},
		{"unknown objective", func(s *Spec) { s.Objective = "ackley" }, "objective"},
		{"x0 length mismatch", func(s *Spec) { s.X0 = []float64{1} }, "x0"},
		{"uneven bounds", func(s *Spec) { s.Lower = []float64{-1, -1}; s.Upper = []float64{1} }, "lower"},
		{"bounds length mismatch", func(s *Spec) {
			s.Lower = []float64{-1, -1, -1}
			s.Upper = []float64{1, 1, 1}
		}, "lower"},
		{"negative popSize", func(s *Spec) { s.PopSize = -5 }, "popSize"},
		{"no workers", func(s *Spec) { s.Workers = 0 }, "workers"},
		{"no iteration budget", func(s *Spec) { s.MaxIters = 0 }, "maxIters"},
		{"negative wall clock", func(s *Spec) { s.MaxSeconds = -1 }, "maxSeconds"},
		{"negative tolerance", func(s *Spec) { s.TargetTol = -1e-6 }, "targetTol"},
		{"unknown schedule", func(s *Spec) { s.Schedule = "linear" }, "schedule"},
		{"checkpoints without data dir", func(s *Spec) { s.CheckpointEvery = 5; s.DataDir = "" }, "dataDir"},
		{"trace without data dir", func(s *Spec) { s.Trace = true; s.DataDir = "" }, "dataDir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)

			err := spec.Validate()
			if err == nil {
				t.Fatal("Expected validation to fail")
			}
			var verr *store.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestSpec_ValidateAcceptsComplete(t *testing.T) {
	spec := validSpec()
	spec.Solver = solver.NameAnneal
	spec.Schedule = solver.ScheduleFast
	spec.CheckpointEvery = 10
	spec.Trace = true

	if err := spec.Validate(); err != nil {
		t.Fatalf("Expected complete spec to validate, got %v", err)
	}
}

func TestSpec_PolicyMapping(t *testing.T) {
	target := 0.25
	spec := &Spec{
		MaxIters:     100,
		MaxCostEvals: 500,
		MaxGradEvals: 200,
		MaxHessEvals: 50,
		MaxSeconds:   1.5,
		TargetCost:   &target,
		TargetTol:    1e-6,
		Patience:     20,
	}

	p := spec.Policy()
	if p.MaxIters != 100 || p.MaxCostEvals != 500 || p.MaxGradEvals != 200 || p.MaxHessEvals != 50 {
		t.Errorf("Unexpected budget mapping: %+v", p)
	}
	if p.MaxDuration != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s duration budget, got %v", p.MaxDuration)
	}
	if p.TargetCost == nil || *p.TargetCost != 0.25 {
		t.Errorf("Expected target cost 0.25, got %v", p.TargetCost)
	}
	if p.TargetTol != 1e-6 {
		t.Errorf("Expected target tolerance 1e-6, got %v", p.TargetTol)
	}
	if p.Patience != 20 {
		t.Errorf("Expected patience 20, got %d", p.Patience)
	}
}
