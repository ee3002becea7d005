package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// FSStore implements the Store interface using filesystem-based
// persistence. Checkpoints are stored per run under
// <baseDir>/runs/<runID>/checkpoint-<iteration>.json.
//
// Thread-safety: this implementation uses atomic file operations
// (rename) and does not require locks. Multiple goroutines can safely
// call methods concurrently.
type FSStore struct {
	baseDir string // Root directory for all run data (e.g., "./data")
	keep    int    // Checkpoints retained per run, 0 or less keeps all
}

// NewFSStore creates a new filesystem-based store. The baseDir will be
// created if it doesn't exist. keep bounds how many checkpoint files
// are retained per run; older ones are pruned after each successful
// save. A keep of zero or less retains everything.
func NewFSStore(baseDir string, keep int) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSStore{
		baseDir: baseDir,
		keep:    keep,
	}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// RunDir returns the directory path for a given run ID.
func (fs *FSStore) RunDir(runID string) string {
	return filepath.Join(fs.baseDir, "runs", runID)
}

// checkpointPath returns the path of the checkpoint file written after
// the given iteration.
func (fs *FSStore) checkpointPath(runID string, iteration uint64) string {
	return filepath.Join(fs.RunDir(runID), fmt.Sprintf("checkpoint-%d.json", iteration))
}

// Save atomically persists an envelope using the temp file + rename
// pattern, then prunes checkpoints beyond the retention bound. Sealing
// sets the envelope's checksum in place.
func (fs *FSStore) Save(env *Envelope) error {
	if env == nil {
		return fmt.Errorf("envelope cannot be nil")
	}
	if err := env.Validate(); err != nil {
		return err
	}

	// Ensure run directory exists
	runDir := fs.RunDir(env.RunID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	if err := env.Seal(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}

	// Write to temporary file first (atomic pattern)
	finalPath := fs.checkpointPath(env.RunID, env.Iteration)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint file: %w", err)
	}

	// Atomic rename to final location
	if err := os.Rename(tempPath, finalPath); err != nil {
		// Clean up temp file on failure
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	slog.Debug("Checkpoint saved",
		"runID", env.RunID, "iteration", env.Iteration, "path", finalPath)

	fs.prune(env.RunID)
	return nil
}

// prune removes the oldest checkpoint files of a run until at most
// keep remain. Prune failures are logged, never surfaced: the save
// that triggered them already succeeded.
func (fs *FSStore) prune(runID string) {
	if fs.keep <= 0 {
		return
	}

	iters, err := fs.Iterations(runID)
	if err != nil {
		slog.Warn("Failed to scan checkpoints for pruning", "runID", runID, "error", err)
		return
	}

	for len(iters) > fs.keep {
		iter := iters[0]
		iters = iters[1:]
		if err := os.Remove(fs.checkpointPath(runID, iter)); err != nil {
			slog.Warn("Failed to prune checkpoint",
				"runID", runID, "iteration", iter, "error", err)
		}
	}
}

// Load retrieves the checkpoint saved at an exact iteration and
// validates its schema version and checksum.
func (fs *FSStore) Load(runID string, iteration uint64) (*Envelope, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.checkpointPath(runID, iteration)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{RunID: runID}
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := env.Verify(); err != nil {
		return nil, err
	}

	slog.Debug("Checkpoint loaded", "runID", runID, "iteration", iteration, "path", path)
	return &env, nil
}

// LoadLatest retrieves the highest-iteration checkpoint of a run.
func (fs *FSStore) LoadLatest(runID string) (*Envelope, error) {
	iters, err := fs.Iterations(runID)
	if err != nil {
		return nil, err
	}
	if len(iters) == 0 {
		return nil, &NotFoundError{RunID: runID}
	}
	return fs.Load(runID, iters[len(iters)-1])
}

// Iterations returns the iterations with a saved checkpoint for a run,
// in ascending order.
func (fs *FSStore) Iterations(runID string) ([]uint64, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	entries, err := os.ReadDir(fs.RunDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			// No checkpoints exist yet, return empty slice
			return []uint64{}, nil
		}
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	var iters []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "checkpoint-") || !strings.HasSuffix(name, ".json") {
			continue // Skip temp files, traces and other artifacts
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "checkpoint-"), ".json")
		iter, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			continue
		}
		iters = append(iters, iter)
	}

	slices.Sort(iters)
	return iters, nil
}

// List returns metadata for the latest checkpoint of every run.
func (fs *FSStore) List() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			// No runs exist yet, return empty slice
			return []RunInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var infos []RunInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		iters, err := fs.Iterations(runID)
		if err != nil || len(iters) == 0 {
			continue // Skip runs without checkpoints
		}

		env, err := fs.Load(runID, iters[len(iters)-1])
		if err != nil {
			slog.Warn("Failed to load checkpoint for listing", "runID", runID, "error", err)
			continue // Skip corrupted checkpoints
		}

		info := env.Info()
		info.Checkpoints = len(iters)
		infos = append(infos, info)
	}

	slog.Debug("Listed runs", "count", len(infos))
	return infos, nil
}

// Delete removes a run directory with all its checkpoints and the
// trace file.
func (fs *FSStore) Delete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	runDir := fs.RunDir(runID)

	if _, err := os.Stat(runDir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	slog.Debug("Run deleted", "runID", runID, "path", runDir)
	return nil
}
