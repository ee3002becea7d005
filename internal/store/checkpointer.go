package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwbudde/optrun/internal/engine"
)

// FileCheckpointer adapts a Store to the engine's Checkpointer
// contract for a single run. Each save snapshots the solver and state
// into a sealed envelope; the store handles atomicity and retention.
type FileCheckpointer struct {
	store  Store
	runID  string
	solver string
	spec   json.RawMessage
	freq   engine.CheckpointFrequency
}

// NewFileCheckpointer creates a checkpointer that writes envelopes for
// runID through s. solver is the registry name recorded in each
// envelope; spec is the run configuration embedded for resume and may
// be nil.
func NewFileCheckpointer(s Store, runID, solver string, spec json.RawMessage, freq engine.CheckpointFrequency) *FileCheckpointer {
	return &FileCheckpointer{
		store:  s,
		runID:  runID,
		solver: solver,
		spec:   spec,
		freq:   freq,
	}
}

// Frequency returns the save cadence the executor should honor.
func (fc *FileCheckpointer) Frequency() engine.CheckpointFrequency {
	return fc.freq
}

// Save serializes the solver and state and persists them as one
// envelope. The state must satisfy engine.State so the envelope header
// can carry the iteration and best cost without decoding the payload.
func (fc *FileCheckpointer) Save(solver any, state any) error {
	st, ok := state.(engine.State)
	if !ok {
		return fmt.Errorf("checkpoint state %T does not implement engine.State", state)
	}

	solverRaw, err := json.Marshal(solver)
	if err != nil {
		return fmt.Errorf("failed to serialize solver: %w", err)
	}
	stateRaw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	c := st.Common()
	env := &Envelope{
		FormatVersion: FormatVersion,
		RunID:         fc.runID,
		CreatedAt:     time.Now(),
		Solver:        fc.solver,
		Iteration:     c.Iter,
		BestCost:      c.BestCost,
		Spec:          fc.spec,
		SolverState:   solverRaw,
		State:         stateRaw,
	}
	return fc.store.Save(env)
}
