package observers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/optrun/internal/engine"
)

// testView builds a running-phase view with evaluation counts derived
// from the iteration.
func testView(iter uint64, cost, best float64) *engine.View {
	return &engine.View{
		Solver:     "gd",
		Phase:      engine.PhaseRunning,
		Iter:       iter,
		Cost:       cost,
		BestCost:   best,
		FuncCounts: map[string]uint64{engine.OpCost: iter + 1, engine.OpGradient: iter},
		Elapsed:    5 * time.Millisecond,
	}
}

// decodeLines parses one JSON object per non-empty line.
func decodeLines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("Failed to decode log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestSlog_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	obs := NewSlogWith(slog.New(slog.NewJSONHandler(&buf, nil)))

	init := testView(0, math.Inf(1), math.Inf(1))
	init.FuncCounts = map[string]uint64{engine.OpCost: 1}
	if err := obs.ObserveInit("gd", init, engine.MakeKV("gamma", 0.1)); err != nil {
		t.Fatalf("ObserveInit failed: %v", err)
	}
	if err := obs.ObserveIter(testView(1, 2.5, 2.5), engine.MakeKV("gamma", 0.1)); err != nil {
		t.Fatalf("ObserveIter failed: %v", err)
	}
	final := testView(2, 1.5, 1.5)
	final.Phase = engine.PhaseTerminated
	final.Status = engine.TerminationStatus{Terminated: true, Reason: engine.MaxIterationsReached}
	if err := obs.ObserveFinal(final); err != nil {
		t.Fatalf("ObserveFinal failed: %v", err)
	}

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 3 {
		t.Fatalf("Expected 3 log lines, got %d", len(lines))
	}

	if lines[0]["msg"] != "Run initialized" || lines[0]["solver"] != "gd" {
		t.Errorf("Unexpected init line: %v", lines[0])
	}
	if lines[0]["gamma"] != 0.1 {
		t.Errorf("Init line dropped solver diagnostics: %v", lines[0])
	}

	if lines[1]["msg"] != "Iteration" || lines[1]["iter"] != float64(1) {
		t.Errorf("Unexpected iteration line: %v", lines[1])
	}
	if lines[1]["best_cost"] != 2.5 || lines[1]["evals"] != float64(3) {
		t.Errorf("Iteration line dropped progress fields: %v", lines[1])
	}

	if lines[2]["msg"] != "Run finished" || lines[2]["reason"] != "max_iterations_reached" {
		t.Errorf("Unexpected final line: %v", lines[2])
	}
	if lines[2]["phase"] != "terminated" {
		t.Errorf("Final line dropped the phase: %v", lines[2])
	}
}

func TestSlogFile_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	obs, err := NewSlogFile(path)
	if err != nil {
		t.Fatalf("NewSlogFile failed: %v", err)
	}
	if err := obs.ObserveIter(testView(1, 2.5, 2.5), nil); err != nil {
		t.Fatalf("ObserveIter failed: %v", err)
	}
	if err := obs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A second observer on the same path appends, as a resume does
	obs, err = NewSlogFile(path)
	if err != nil {
		t.Fatalf("NewSlogFile on existing file failed: %v", err)
	}
	if err := obs.ObserveIter(testView(2, 1.5, 1.5), nil); err != nil {
		t.Fatalf("ObserveIter failed: %v", err)
	}
	if err := obs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := decodeLines(t, data)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}
	if lines[0]["iter"] != float64(1) || lines[1]["iter"] != float64(2) {
		t.Errorf("Log lines out of order: %v", lines)
	}
}

func TestSlog_CloseWithoutFileIsNoop(t *testing.T) {
	obs := NewSlog()
	if obs.Name() != "slog" {
		t.Errorf("Unexpected observer name %q", obs.Name())
	}
	if err := obs.Close(); err != nil {
		t.Errorf("Close on a logger-backed observer failed: %v", err)
	}
}
