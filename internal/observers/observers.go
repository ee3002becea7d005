// Package observers provides the shipped engine.Observer
// implementations: structured logging through log/slog, JSONL cost
// traces for plotting, and Prometheus gauges for scraping.
package observers

// totalEvals sums the per-operation evaluation counts of a view.
func totalEvals(counts map[string]uint64) uint64 {
	var total uint64
	for _, n := range counts {
		total += n
	}
	return total
}
