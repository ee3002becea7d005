package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/optrun/internal/store"
)

var (
	checkpointDataDir string
	showIteration     uint64
	showSpec          bool
	keepLast          int
	olderThanDays     int
	forceClean        bool
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage run checkpoints",
	Long: `Manage run checkpoints including listing, inspecting and cleaning them.
Checkpoints allow resuming long-running optimizations from saved state.`,
}

var listCheckpointsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all checkpointed runs",
	Long:  `Display all runs with checkpoints: run ID, solver, latest iteration, best cost, save time and size on disk.`,
	RunE:  runListCheckpoints,
}

var showCheckpointCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Inspect one checkpoint",
	Long:  `Verify a checkpoint's integrity and print its metadata, available iterations and, with --spec, the embedded run spec.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShowCheckpoint,
}

var cleanCheckpointsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old checkpoints",
	Long: `Delete checkpointed runs based on retention policy.
You can keep only the most recently saved runs or delete runs whose latest checkpoint is older than N days.`,
	RunE: runCleanCheckpoints,
}

func init() {
	rootCmd.AddCommand(checkpointsCmd)

	checkpointsCmd.AddCommand(listCheckpointsCmd)
	checkpointsCmd.AddCommand(showCheckpointCmd)
	checkpointsCmd.AddCommand(cleanCheckpointsCmd)

	checkpointsCmd.PersistentFlags().StringVar(&checkpointDataDir, "data-dir", "data", "Base directory for checkpoint storage")

	showCheckpointCmd.Flags().Uint64Var(&showIteration, "iteration", 0, "Checkpoint iteration to show (0 = latest)")
	showCheckpointCmd.Flags().BoolVar(&showSpec, "spec", false, "Print the embedded run spec")

	cleanCheckpointsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the N most recently saved runs (0 = keep all)")
	cleanCheckpointsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs whose latest checkpoint is older than N days (0 = no age limit)")
	cleanCheckpointsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListCheckpoints(cmd *cobra.Command, args []string) error {
	fs, err := store.NewFSStore(checkpointDataDir, 0)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	infos, err := fs.List()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No checkpoints found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSOLVER\tITERATION\tBEST COST\tSAVED\tSIZE")
	fmt.Fprintln(w, "------\t------\t---------\t---------\t-----\t----")

	for _, info := range infos {
		size, err := getDirSize(fs.RunDir(info.RunID))
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%.6g\t%s\t%s\n",
			truncateID(info.RunID),
			info.Solver,
			info.Iteration,
			float64(info.BestCost),
			info.CreatedAt.Format("2006-01-02 15:04:05"),
			sizeStr,
		)
	}

	w.Flush()

	fmt.Printf("\nTotal runs: %d\n", len(infos))
	return nil
}

func runShowCheckpoint(cmd *cobra.Command, args []string) error {
	id := args[0]

	fs, err := store.NewFSStore(checkpointDataDir, 0)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	var env *store.Envelope
	if showIteration > 0 {
		env, err = fs.Load(id, showIteration)
	} else {
		env, err = fs.LoadLatest(id)
	}
	if err != nil {
		return err
	}

	iterations, err := fs.Iterations(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run: %s\n", env.RunID)
	fmt.Printf("Solver: %s\n", env.Solver)
	fmt.Printf("Iteration: %d\n", env.Iteration)
	fmt.Printf("Best Cost: %.6g\n", float64(env.BestCost))
	fmt.Printf("Saved: %s\n", env.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Format: v%d\n", env.FormatVersion)
	fmt.Printf("Checksum: verified\n")
	fmt.Printf("Available iterations: %v\n", iterations)

	if showSpec && len(env.Spec) > 0 {
		pretty, err := json.MarshalIndent(json.RawMessage(env.Spec), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format embedded spec: %w", err)
		}
		fmt.Printf("\nSpec:\n%s\n", pretty)
	}

	return nil
}

func runCleanCheckpoints(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	fs, err := store.NewFSStore(checkpointDataDir, 0)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	infos, err := fs.List()
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No checkpoints to clean.")
		return nil
	}

	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays)

	if len(toDelete) == 0 {
		fmt.Println("No checkpoints match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (iteration %d, saved %s)\n",
			truncateID(info.RunID),
			info.Iteration,
			info.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := fs.Delete(info.RunID); err != nil {
			slog.Error("Failed to delete run", "runId", info.RunID, "error", err)
			failed++
			continue
		}
		if err := store.DeleteTrace(fs.BaseDir(), info.RunID); err != nil {
			slog.Warn("Failed to delete trace", "runId", info.RunID, "error", err)
		}
		slog.Info("Deleted run artifacts", "runId", info.RunID)
		deleted++
	}

	fmt.Printf("\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

// selectRunsForDeletion applies the retention policy: age-based
// selection first, then count-based on top, without double counting.
func selectRunsForDeletion(infos []store.RunInfo, keepLast int, olderThanDays int) []store.RunInfo {
	selected := make(map[string]bool)
	var toDelete []store.RunInfo

	if olderThanDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.CreatedAt.Before(cutoff) {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	if keepLast > 0 && len(infos) > keepLast {
		sorted := make([]store.RunInfo, len(infos))
		copy(sorted, infos)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		})

		for _, info := range sorted[:len(sorted)-keepLast] {
			if !selected[info.RunID] {
				toDelete = append(toDelete, info)
				selected[info.RunID] = true
			}
		}
	}

	return toDelete
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
