package store

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"
)

// testEnvelope builds a complete unsealed envelope with placeholder
// payloads.
func testEnvelope(runID string, iteration uint64) *Envelope {
	return &Envelope{
		FormatVersion: FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		Solver:        "anneal",
		Iteration:     iteration,
		BestCost:      0.125,
		Spec:          json.RawMessage(`{"solver":"anneal","maxIters":100}`),
		SolverState:   json.RawMessage(`{"temp":1.5}`),
		State:         json.RawMessage(`{"iter":` + strconv.FormatUint(iteration, 10) + `}`),
	}
}

func TestEnvelope_SealAndVerify(t *testing.T) {
	env := testEnvelope("run-1", 5)

	if err := env.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if env.Checksum == "" {
		t.Fatal("Seal left the checksum empty")
	}
	if err := env.Verify(); err != nil {
		t.Errorf("Verify failed on a freshly sealed envelope: %v", err)
	}
}

func TestEnvelope_VerifyDetectsTampering(t *testing.T) {
	env := testEnvelope("run-1", 5)
	if err := env.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	env.Iteration = 99

	err := env.Verify()
	if err == nil {
		t.Fatal("Expected a checksum mismatch after mutation")
	}
	if !errors.Is(err, &ValidationError{}) {
		t.Errorf("Expected a ValidationError, got %T: %v", err, err)
	}
}

func TestEnvelope_VerifyRequiresChecksum(t *testing.T) {
	env := testEnvelope("run-1", 5)

	if err := env.Verify(); err == nil {
		t.Fatal("Expected an error for an unsealed envelope")
	}
}

func TestEnvelope_ChecksumStableAcrossPrettyPrint(t *testing.T) {
	env := testEnvelope("run-1", 5)
	if err := env.Seal(); err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	// The store writes indented JSON; the reloaded raw documents keep
	// that whitespace and the digest must not care.
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}

	var restored Envelope
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal envelope: %v", err)
	}

	if restored.Checksum != env.Checksum {
		t.Fatalf("Checksum changed across the round trip: %s vs %s", restored.Checksum, env.Checksum)
	}
	if err := restored.Verify(); err != nil {
		t.Errorf("Verify failed after a pretty-printed round trip: %v", err)
	}
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Envelope)
		wantField  string
		wantCompat bool
	}{
		{"future format version", func(e *Envelope) { e.FormatVersion = 2 }, "format_version", true},
		{"empty run id", func(e *Envelope) { e.RunID = "" }, "run_id", false},
		{"empty solver", func(e *Envelope) { e.Solver = "" }, "solver", false},
		{"zero iteration", func(e *Envelope) { e.Iteration = 0 }, "iteration", false},
		{"zero created at", func(e *Envelope) { e.CreatedAt = time.Time{} }, "created_at", false},
		{"missing solver state", func(e *Envelope) { e.SolverState = nil }, "solver_state", false},
		{"missing state", func(e *Envelope) { e.State = nil }, "state", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testEnvelope("run-1", 5)
			tt.mutate(env)

			err := env.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}

			if tt.wantCompat {
				var ce *CompatibilityError
				if !errors.As(err, &ce) {
					t.Fatalf("Expected a CompatibilityError, got %T: %v", err, err)
				}
				if ce.Field != tt.wantField {
					t.Errorf("Expected field %q, got %q", tt.wantField, ce.Field)
				}
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected a ValidationError, got %T: %v", err, err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestEnvelope_ValidateAcceptsComplete(t *testing.T) {
	if err := testEnvelope("run-1", 5).Validate(); err != nil {
		t.Errorf("Validate rejected a complete envelope: %v", err)
	}
}

func TestEnvelope_CompatibleWith(t *testing.T) {
	env := testEnvelope("run-1", 5)

	if err := env.CompatibleWith("anneal"); err != nil {
		t.Errorf("Expected the matching solver to be compatible: %v", err)
	}

	err := env.CompatibleWith("bfgs")
	if err == nil {
		t.Fatal("Expected a solver mismatch error")
	}
	var ce *CompatibilityError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected a CompatibilityError, got %T: %v", err, err)
	}
	if ce.Expected != "anneal" || ce.Actual != "bfgs" {
		t.Errorf("Unexpected mismatch details: expected %q, actual %q", ce.Expected, ce.Actual)
	}
}

func TestEnvelope_Info(t *testing.T) {
	env := testEnvelope("run-1", 7)

	info := env.Info()
	if info.RunID != "run-1" || info.Solver != "anneal" || info.Iteration != 7 {
		t.Errorf("Info dropped header fields: %+v", info)
	}
	if info.BestCost != 0.125 {
		t.Errorf("Expected best cost 0.125, got %v", info.BestCost)
	}
	if !info.CreatedAt.Equal(env.CreatedAt) {
		t.Errorf("Expected created at %v, got %v", env.CreatedAt, info.CreatedAt)
	}
}

func TestNotFoundError_ErrorsIs(t *testing.T) {
	err := &NotFoundError{RunID: "run-1"}

	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected errors.Is to match ErrNotFound")
	}
	if errors.Is(errors.New("other"), ErrNotFound) {
		t.Error("Expected an unrelated error not to match ErrNotFound")
	}
}
