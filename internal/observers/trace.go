package observers

import (
	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/store"
)

// Trace appends one JSONL record per observed iteration to a trace
// file, the data source for cost-history plots. The init record is
// iteration 0, the evaluated starting point.
type Trace struct {
	writer *store.TraceWriter
}

// NewTrace wraps an open trace writer. The caller keeps ownership of
// the writer and closes it after the run.
func NewTrace(w *store.TraceWriter) *Trace {
	return &Trace{writer: w}
}

// Name identifies the observer in logs.
func (t *Trace) Name() string { return "trace" }

func (t *Trace) entry(v *engine.View) store.TraceEntry {
	return store.TraceEntry{
		Iter:      v.Iter,
		Cost:      engine.Float(v.Cost),
		BestCost:  engine.Float(v.BestCost),
		Evals:     totalEvals(v.FuncCounts),
		ElapsedMS: v.Elapsed.Milliseconds(),
	}
}

// ObserveInit records the starting point as iteration 0.
func (t *Trace) ObserveInit(solver string, v *engine.View, kv engine.KV) error {
	return t.writer.Write(t.entry(v))
}

// ObserveIter records one point per observed iteration.
func (t *Trace) ObserveIter(v *engine.View, kv engine.KV) error {
	return t.writer.Write(t.entry(v))
}

// ObserveFinal flushes the trace so the history is durable before the
// run reports its result. The last iteration was already recorded, so
// nothing new is written.
func (t *Trace) ObserveFinal(v *engine.View) error {
	return t.writer.Flush()
}
