package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cwbudde/optrun/internal/engine"
)

// FormatVersion is the envelope schema version written by this build.
// Loading an envelope with a different version fails with a
// CompatibilityError instead of guessing at the layout.
const FormatVersion = 1

// Envelope is the on-disk checkpoint format.
//
// The solver and state snapshots are kept as raw JSON documents so the
// store never depends on concrete solver types. Resume decodes them
// back into the types named by the embedded spec, which makes a
// restored run continue the exact trajectory of an uninterrupted one:
// the snapshots carry the full mutable solver state, including
// serialized RNG streams for the stochastic solvers.
type Envelope struct {
	// FormatVersion is the schema version this envelope was written with.
	FormatVersion int `json:"format_version"`

	// RunID identifies the run this checkpoint belongs to.
	RunID string `json:"run_id"`

	// CreatedAt records when this checkpoint was written.
	CreatedAt time.Time `json:"created_at"`

	// Solver is the registry name of the solver that produced the
	// snapshot. Resume refuses envelopes whose solver does not match
	// the configured one.
	Solver string `json:"solver"`

	// Iteration is the number of completed iterations at save time.
	// Checkpoints are written at iteration boundaries, so this is
	// always at least 1.
	Iteration uint64 `json:"iteration"`

	// BestCost is the best objective value found so far. It mirrors
	// the state snapshot so listings never need to decode the payload.
	BestCost engine.Float `json:"best_cost"`

	// Spec is the run configuration as raw JSON, kept for validation
	// and so a resume can rebuild the run without the original file.
	Spec json.RawMessage `json:"spec,omitempty"`

	// SolverState is the solver's mutable state as raw JSON.
	SolverState json.RawMessage `json:"solver_state"`

	// State is the iteration state as raw JSON.
	State json.RawMessage `json:"state"`

	// Checksum is the hex SHA-256 over the envelope with this field
	// empty. Set by Seal, checked by Verify.
	Checksum string `json:"checksum,omitempty"`
}

// digest computes the hex SHA-256 of the envelope serialized with an
// empty checksum field. json.Marshal compacts the raw documents, so
// the digest is stable across save, pretty-printing and reload.
func (e *Envelope) digest() (string, error) {
	clone := *e
	clone.Checksum = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("failed to serialize envelope for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal computes and stores the envelope checksum. Call after all other
// fields are final; any later mutation invalidates the seal.
func (e *Envelope) Seal() error {
	sum, err := e.digest()
	if err != nil {
		return err
	}
	e.Checksum = sum
	return nil
}

// Verify recomputes the checksum and compares it against the sealed
// one. A mismatch means the file was corrupted or edited after save.
func (e *Envelope) Verify() error {
	if e.Checksum == "" {
		return &ValidationError{Field: "checksum", Reason: "missing"}
	}
	sum, err := e.digest()
	if err != nil {
		return err
	}
	if sum != e.Checksum {
		return &ValidationError{Field: "checksum", Reason: "mismatch, envelope corrupted"}
	}
	return nil
}

// Validate checks that the envelope carries a complete checkpoint.
// The format version is checked first so that a newer schema fails
// with a CompatibilityError rather than a field-level complaint.
func (e *Envelope) Validate() error {
	if e.FormatVersion != FormatVersion {
		return &CompatibilityError{
			Field:    "format_version",
			Expected: fmt.Sprintf("%d", FormatVersion),
			Actual:   fmt.Sprintf("%d", e.FormatVersion),
		}
	}
	if e.RunID == "" {
		return &ValidationError{Field: "run_id", Reason: "cannot be empty"}
	}
	if e.Solver == "" {
		return &ValidationError{Field: "solver", Reason: "cannot be empty"}
	}
	if e.Iteration == 0 {
		return &ValidationError{Field: "iteration", Reason: "checkpoints carry at least one completed iteration"}
	}
	if e.CreatedAt.IsZero() {
		return &ValidationError{Field: "created_at", Reason: "cannot be zero"}
	}
	if len(e.SolverState) == 0 {
		return &ValidationError{Field: "solver_state", Reason: "cannot be empty"}
	}
	if len(e.State) == 0 {
		return &ValidationError{Field: "state", Reason: "cannot be empty"}
	}
	return nil
}

// CompatibleWith checks that the envelope can seed a run configured
// for the given solver.
func (e *Envelope) CompatibleWith(solver string) error {
	if e.Solver != solver {
		return &CompatibilityError{Field: "solver", Expected: e.Solver, Actual: solver}
	}
	return nil
}

// Info extracts listing metadata without decoding the payload.
func (e *Envelope) Info() RunInfo {
	return RunInfo{
		RunID:     e.RunID,
		Solver:    e.Solver,
		Iteration: e.Iteration,
		BestCost:  e.BestCost,
		CreatedAt: e.CreatedAt,
	}
}

// ValidationError reports a malformed or corrupted envelope.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// CompatibilityError reports an envelope that cannot seed the
// requested run, for example a format version or solver mismatch.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}

func (e *CompatibilityError) Is(target error) bool {
	_, ok := target.(*CompatibilityError)
	return ok
}
