package observers

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cwbudde/optrun/internal/engine"
)

// Slog logs run progress through log/slog. Solver diagnostics arrive
// as ordered KV pairs and are appended to the fixed fields in their
// original order.
type Slog struct {
	logger *slog.Logger
	closer io.Closer // set when the observer owns the log file
}

// NewSlog logs through the process-wide default logger.
func NewSlog() *Slog {
	return &Slog{logger: slog.Default()}
}

// NewSlogWith logs through the given logger.
func NewSlogWith(logger *slog.Logger) *Slog {
	return &Slog{logger: logger}
}

// NewSlogFile logs JSON lines to a dedicated file, one object per
// entry, appending if the file already exists. Close releases the
// file handle.
func NewSlogFile(path string) (*Slog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Slog{
		logger: slog.New(slog.NewJSONHandler(file, nil)),
		closer: file,
	}, nil
}

// Name identifies the observer in logs.
func (s *Slog) Name() string { return "slog" }

// ObserveInit logs the solver start with its init diagnostics.
func (s *Slog) ObserveInit(solver string, v *engine.View, kv engine.KV) error {
	args := append([]any{"solver", solver, "evals", totalEvals(v.FuncCounts)}, kv.Args()...)
	s.logger.Info("Run initialized", args...)
	return nil
}

// ObserveIter logs one progress line per observed iteration.
func (s *Slog) ObserveIter(v *engine.View, kv engine.KV) error {
	args := []any{
		"iter", v.Iter,
		"cost", v.Cost,
		"best_cost", v.BestCost,
		"evals", totalEvals(v.FuncCounts),
	}
	args = append(args, kv.Args()...)
	s.logger.Info("Iteration", args...)
	return nil
}

// ObserveFinal logs the terminal phase with the recorded reason.
func (s *Slog) ObserveFinal(v *engine.View) error {
	s.logger.Info("Run finished",
		"solver", v.Solver,
		"phase", v.Phase,
		"reason", v.Status.Reason,
		"iter", v.Iter,
		"best_cost", v.BestCost,
		"evals", totalEvals(v.FuncCounts),
		"elapsed", v.Elapsed)
	return nil
}

// Close releases the log file when the observer owns one. A no-op for
// logger-backed observers.
func (s *Slog) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
