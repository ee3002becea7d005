package engine

type checkpointKind uint8

const (
	checkpointNever checkpointKind = iota
	checkpointEvery
	checkpointAlways
)

// CheckpointFrequency controls how often the executor persists a
// checkpoint. Saves only happen at iteration boundaries, never during
// init, so a checkpoint always carries at least one completed iteration.
type CheckpointFrequency struct {
	kind checkpointKind
	n    uint64
}

// CheckpointNever disables checkpointing.
func CheckpointNever() CheckpointFrequency { return CheckpointFrequency{kind: checkpointNever} }

// CheckpointEvery saves after every nth iteration. n below 1 is treated
// as 1.
func CheckpointEvery(n uint64) CheckpointFrequency {
	if n < 1 {
		n = 1
	}
	return CheckpointFrequency{kind: checkpointEvery, n: n}
}

// CheckpointAlways saves after every iteration.
func CheckpointAlways() CheckpointFrequency { return CheckpointFrequency{kind: checkpointAlways} }

// ShouldSave reports whether a checkpoint is due after iteration iter.
func (f CheckpointFrequency) ShouldSave(iter uint64) bool {
	if iter == 0 {
		return false
	}
	switch f.kind {
	case checkpointAlways:
		return true
	case checkpointEvery:
		return iter%f.n == 0
	default:
		return false
	}
}

// Checkpointer persists solver and state snapshots during a run. Save
// must be atomic: a crash mid-save leaves the previous checkpoint
// intact. An error from an optional checkpointer is logged and the run
// continues; from a mandatory one it fails the run.
type Checkpointer interface {
	Frequency() CheckpointFrequency
	Save(solver any, state any) error
}

type checkpointReg struct {
	cp        Checkpointer
	mandatory bool
}
