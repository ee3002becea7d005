package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/linalg"
	"github.com/cwbudde/optrun/internal/objective"
	"github.com/cwbudde/optrun/internal/solver"
)

type fakeSolver struct {
	Temp float64 `json:"temp"`
}

func TestFileCheckpointer_Frequency(t *testing.T) {
	st, _ := setupTestStore(t)

	cp := NewFileCheckpointer(st, "run-1", "anneal", nil, engine.CheckpointEvery(3))

	freq := cp.Frequency()
	if !freq.ShouldSave(3) || freq.ShouldSave(2) {
		t.Error("Frequency did not preserve the configured cadence")
	}
}

func TestFileCheckpointer_SaveWritesEnvelope(t *testing.T) {
	st, _ := setupTestStore(t)

	spec := json.RawMessage(`{"solver":"anneal","x0":[1,2]}`)
	cp := NewFileCheckpointer(st, "run-cp", "anneal", spec, engine.CheckpointAlways())

	state := engine.NewIterState([]float64{1, 2})
	c := state.Common()
	c.Iter = 4
	c.Cost = 3.5
	c.BestCost = 2.25

	if err := cp.Save(&fakeSolver{Temp: 0.5}, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	env, err := st.LoadLatest("run-cp")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if env.Solver != "anneal" || env.Iteration != 4 {
		t.Errorf("Envelope header mismatch: %+v", env)
	}
	if env.BestCost != 2.25 {
		t.Errorf("Expected best cost 2.25, got %v", env.BestCost)
	}

	var spec2 struct {
		Solver string `json:"solver"`
	}
	if err := json.Unmarshal(env.Spec, &spec2); err != nil {
		t.Fatalf("Failed to decode embedded spec: %v", err)
	}
	if spec2.Solver != "anneal" {
		t.Errorf("Embedded spec did not round-trip: %+v", spec2)
	}

	var fs2 fakeSolver
	if err := json.Unmarshal(env.SolverState, &fs2); err != nil {
		t.Fatalf("Failed to decode solver state: %v", err)
	}
	if fs2.Temp != 0.5 {
		t.Errorf("Expected solver temp 0.5, got %v", fs2.Temp)
	}

	restored := &engine.IterState{}
	if err := json.Unmarshal(env.State, restored); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if !linalg.EqualApprox(restored.Param, []float64{1, 2}, 0) {
		t.Errorf("State params did not round-trip: %v", restored.Param)
	}
	if restored.Cost != 3.5 {
		t.Errorf("Expected cost 3.5, got %v", restored.Cost)
	}
}

func TestFileCheckpointer_RejectsForeignState(t *testing.T) {
	st, _ := setupTestStore(t)
	cp := NewFileCheckpointer(st, "run-1", "anneal", nil, engine.CheckpointAlways())

	if err := cp.Save(&fakeSolver{}, 42); err == nil {
		t.Fatal("Expected an error for a state without the common header")
	}
}

// A run checkpointed to disk and continued from the loaded envelope
// must replay the exact trajectory of an uninterrupted run, stochastic
// solver included.
func TestFileCheckpointer_ResumeFromDiskMatchesUninterrupted(t *testing.T) {
	full := solver.NewSimulatedAnnealing(21)
	fullProblem := engine.NewProblem(objective.Sphere{}, 1)
	fullRes, err := engine.NewExecutor(full, fullProblem, engine.NewIterState([]float64{2.5, -1.5})).
		WithPolicy(engine.Policy{MaxIters: 30}).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Full run failed: %v", err)
	}

	st, _ := setupTestStore(t)
	cp := NewFileCheckpointer(st, "run-resume", "anneal", nil, engine.CheckpointEvery(5))

	head := solver.NewSimulatedAnnealing(21)
	headProblem := engine.NewProblem(objective.Sphere{}, 1)
	headRes, err := engine.NewExecutor(head, headProblem, engine.NewIterState([]float64{2.5, -1.5})).
		WithPolicy(engine.Policy{MaxIters: 10}).
		CheckpointMandatory(cp).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Head run failed: %v", err)
	}

	env, err := st.LoadLatest("run-resume")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if env.Iteration != 10 {
		t.Fatalf("Expected the last checkpoint at iteration 10, got %d", env.Iteration)
	}
	if float64(env.BestCost) != headRes.BestCost() {
		t.Errorf("Envelope best cost %v diverged from the head run %v", env.BestCost, headRes.BestCost())
	}

	tail := &solver.SimulatedAnnealing{}
	if err := json.Unmarshal(env.SolverState, tail); err != nil {
		t.Fatalf("Failed to decode solver state: %v", err)
	}
	tailState := &engine.IterState{}
	if err := json.Unmarshal(env.State, tailState); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}

	// Same continuation protocol as a real resume: drop the recorded
	// termination and seed the fresh problem with the saved counters.
	tailState.Status = engine.TerminationStatus{}
	tailProblem := engine.NewProblem(objective.Sphere{}, 1)
	tailProblem.SetCounts(tailState.FuncCounts)

	tailRes, err := engine.NewExecutor(tail, tailProblem, tailState).
		WithPolicy(engine.Policy{MaxIters: 30}).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Tail run failed: %v", err)
	}

	if tailRes.State().Iter != fullRes.State().Iter {
		t.Fatalf("Expected matching iteration counts, got %d and %d",
			tailRes.State().Iter, fullRes.State().Iter)
	}
	if tailRes.BestCost() != fullRes.BestCost() {
		t.Errorf("Resumed best cost %v diverged from the straight run %v",
			tailRes.BestCost(), fullRes.BestCost())
	}
	if !linalg.EqualApprox(tailRes.State().Param, fullRes.State().Param, 0) {
		t.Errorf("Resumed trajectory diverged: %v vs %v",
			tailRes.State().Param, fullRes.State().Param)
	}
	if got, want := tailRes.State().FuncCounts[engine.OpCost], fullRes.State().FuncCounts[engine.OpCost]; got != want {
		t.Errorf("Expected %d cost evaluations after resume, got %d", want, got)
	}
}
