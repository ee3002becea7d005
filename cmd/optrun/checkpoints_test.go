package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/optrun/internal/store"
)

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)}, // 10 days old
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},  // 5 days old
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},  // 1 day old
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)}, // 30 days old
	}

	// Delete runs older than 7 days
	toDelete := selectRunsForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}

	found10 := false
	found30 := false
	for _, info := range toDelete {
		if info.RunID == "run1" {
			found10 = true
		}
		if info.RunID == "run4" {
			found30 = true
		}
	}

	if !found10 || !found30 {
		t.Error("Expected run1 and run4 to be selected for deletion")
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)},
	}

	// Keep only the 2 most recently saved runs
	toDelete := selectRunsForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}

	found30 := false
	found10 := false
	for _, info := range toDelete {
		if info.RunID == "run4" {
			found30 = true
		}
		if info.RunID == "run1" {
			found10 = true
		}
	}

	if !found30 || !found10 {
		t.Error("Expected run4 and run1 to be selected for deletion (oldest)")
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{RunID: "run1", CreatedAt: now.AddDate(0, 0, -10)},
		{RunID: "run2", CreatedAt: now.AddDate(0, 0, -5)},
		{RunID: "run3", CreatedAt: now.AddDate(0, 0, -1)},
		{RunID: "run4", CreatedAt: now.AddDate(0, 0, -30)},
		{RunID: "run5", CreatedAt: now.AddDate(0, 0, -2)},
	}

	// Delete older than 7 days AND keep only the last 3; run1 and run4
	// match both criteria but must appear once.
	toDelete := selectRunsForDeletion(infos, 3, 7)

	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	seen := map[string]int{}
	for _, info := range toDelete {
		seen[info.RunID]++
	}
	if seen["run1"] != 1 || seen["run4"] != 1 {
		t.Errorf("Expected run1 and run4 exactly once, got %v", seen)
	}
}

func TestTruncateID(t *testing.T) {
	if got := truncateID("short"); got != "short" {
		t.Errorf("truncateID(short) = %s", got)
	}
	long := "0123456789abcdef"
	if got := truncateID(long); got != "0123456789ab..." {
		t.Errorf("truncateID(%s) = %s", long, got)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

// saveTestEnvelope writes a minimal valid checkpoint for command tests.
func saveTestEnvelope(t *testing.T, fs *store.FSStore, runID string, createdAt time.Time) {
	t.Helper()
	env := &store.Envelope{
		FormatVersion: store.FormatVersion,
		RunID:         runID,
		CreatedAt:     createdAt,
		Solver:        "gd",
		Iteration:     10,
		BestCost:      0.5,
		Spec:          json.RawMessage(`{"objective":"sphere","solver":"gd","dim":2,"x0":[1,-1]}`),
		SolverState:   json.RawMessage(`{"stepSize":0.1}`),
		State:         json.RawMessage(`{"iter":10}`),
	}
	if err := fs.Save(env); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}
}

func TestCheckpointsListCommand_NoCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runListCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsListCommand_WithCheckpoints(t *testing.T) {
	tmpDir := t.TempDir()

	fs, err := store.NewFSStore(tmpDir, 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestEnvelope(t, fs, "test-run-id", time.Now())

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runListCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestCheckpointsShowCommand(t *testing.T) {
	tmpDir := t.TempDir()

	fs, err := store.NewFSStore(tmpDir, 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestEnvelope(t, fs, "show-run", time.Now())

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	if err := runShowCheckpoint(nil, []string{"show-run"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := runShowCheckpoint(nil, []string{"missing-run"}); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestCheckpointsCleanCommand_NoFlags(t *testing.T) {
	tmpDir := t.TempDir()

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 0

	if err := runCleanCheckpoints(nil, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestCheckpointsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	fs, err := store.NewFSStore(tmpDir, 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	saveTestEnvelope(t, fs, "old-run", time.Now().AddDate(0, 0, -30))

	originalDataDir := checkpointDataDir
	checkpointDataDir = tmpDir
	defer func() { checkpointDataDir = originalDataDir }()

	keepLast = 0
	olderThanDays = 7
	forceClean = true

	if err := runCleanCheckpoints(nil, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := fs.LoadLatest("old-run"); err == nil {
		t.Error("Expected checkpoint to be deleted")
	}
}
