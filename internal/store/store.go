package store

import (
	"time"

	"github.com/cwbudde/optrun/internal/engine"
)

// Store defines the interface for checkpoint persistence operations.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return a NotFoundError if the run or checkpoint doesn't exist
//   - Return a ValidationError or CompatibilityError for corrupted or
//     unreadable envelopes
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// Save atomically persists an envelope, sealing its checksum.
	// A failed save never corrupts a previously saved checkpoint.
	Save(env *Envelope) error

	// Load retrieves the checkpoint saved at an exact iteration.
	// Returns a NotFoundError if no such checkpoint exists, and a
	// validation or compatibility error if the envelope is corrupted
	// or written by an incompatible schema.
	Load(runID string, iteration uint64) (*Envelope, error)

	// LoadLatest retrieves the highest-iteration checkpoint of a run.
	LoadLatest(runID string) (*Envelope, error)

	// Iterations returns the iterations with a saved checkpoint for a
	// run, in ascending order. The slice is empty if the run has no
	// checkpoints.
	Iterations(runID string) ([]uint64, error)

	// List returns metadata for the latest checkpoint of every run.
	List() ([]RunInfo, error)

	// Delete removes all checkpoints and artifacts of a run, trace
	// included. Returns a NotFoundError if the run does not exist.
	Delete(runID string) error
}

// RunInfo is checkpoint metadata for listings, cheap to produce
// because it never decodes the solver or state payloads.
type RunInfo struct {
	// RunID identifies the run.
	RunID string `json:"runId"`

	// Solver is the registry name of the solver.
	Solver string `json:"solver"`

	// Iteration is the iteration of the latest checkpoint.
	Iteration uint64 `json:"iteration"`

	// BestCost is the best objective value at that checkpoint.
	BestCost engine.Float `json:"bestCost"`

	// CreatedAt records when the latest checkpoint was written.
	CreatedAt time.Time `json:"createdAt"`

	// Checkpoints is the number of checkpoint files kept for the run.
	Checkpoints int `json:"checkpoints"`
}

// ErrNotFound is returned when a requested run or checkpoint does not
// exist. Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run or checkpoint.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "checkpoint not found: " + e.RunID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
