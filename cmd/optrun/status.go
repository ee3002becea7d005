package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Query a serving instance for run status",
	Long: `Queries a running optrun server for run status information.
If no run-id is provided, lists all runs.
If run-id is provided, shows detailed status for that run.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listRuns(fmt.Sprintf("%s/api/runs", serverURL))
	}
	id := args[0]
	return getRunStatus(fmt.Sprintf("%s/api/runs/%s", serverURL, id), id)
}

func listRuns(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var runs []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("No runs found")
		return nil
	}

	fmt.Printf("Found %d run(s):\n\n", len(runs))
	for _, r := range runs {
		fmt.Printf("Run ID: %s\n", r["id"])
		fmt.Printf("  State: %s\n", r["state"])
		if spec, ok := r["spec"].(map[string]interface{}); ok {
			fmt.Printf("  Solver: %s\n", spec["solver"])
			fmt.Printf("  Objective: %s\n", spec["objective"])
		}
		fmt.Printf("  Iteration: %v\n", r["iter"])
		fmt.Printf("  Best Cost: %s\n", fmtCost(r["bestCost"]))
		if reason, ok := r["reason"].(string); ok && reason != "" {
			fmt.Printf("  Reason: %s\n", reason)
		}
		fmt.Println()
	}

	return nil
}

func getRunStatus(url, id string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("run not found: %s", id)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned error: %s", string(body))
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	fmt.Printf("Run: %s\n", status["id"])
	fmt.Printf("State: %s\n", status["state"])
	fmt.Println()

	if spec, ok := status["spec"].(map[string]interface{}); ok {
		fmt.Println("Configuration:")
		fmt.Printf("  Objective: %s\n", spec["objective"])
		fmt.Printf("  Solver: %s\n", spec["solver"])
		fmt.Printf("  Dimension: %v\n", spec["dim"])
		if maxIters, ok := spec["maxIters"]; ok {
			fmt.Printf("  Max Iterations: %v\n", maxIters)
		}
		fmt.Println()
	}

	fmt.Println("Progress:")
	fmt.Printf("  Iteration: %v\n", status["iter"])
	fmt.Printf("  Cost: %s\n", fmtCost(status["cost"]))
	fmt.Printf("  Best Cost: %s\n", fmtCost(status["bestCost"]))
	fmt.Printf("  Evaluations: %v\n", status["evals"])

	if elapsed, ok := status["elapsedNs"].(float64); ok && elapsed > 0 {
		fmt.Printf("  Elapsed: %s\n", time.Duration(elapsed).Round(time.Millisecond))
	}
	if reason, ok := status["reason"].(string); ok && reason != "" {
		fmt.Printf("  Reason: %s\n", reason)
	}
	if errMsg, ok := status["error"].(string); ok && errMsg != "" {
		fmt.Printf("\nError: %s\n", errMsg)
	}

	return nil
}

// fmtCost renders a cost decoded from JSON. Non-finite costs cross the
// wire as strings, so pending runs show as +Inf rather than a decode
// artifact.
func fmtCost(v interface{}) string {
	switch c := v.(type) {
	case float64:
		return fmt.Sprintf("%.6g", c)
	case string:
		return c
	default:
		return "unknown"
	}
}
