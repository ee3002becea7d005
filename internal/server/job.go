package server

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/optrun/internal/engine"
	"github.com/cwbudde/optrun/internal/run"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Job represents one optimization run managed by the server. The
// progress fields mirror the run's state header and are updated by the
// worker's stream observer while the run is in flight.
type Job struct {
	ID        string        `json:"id"`
	State     JobState      `json:"state"`
	Spec      run.Spec      `json:"spec"`
	Iter      uint64        `json:"iter"`
	Cost      engine.Float  `json:"cost"`
	BestCost  engine.Float  `json:"bestCost"`
	BestParam []float64     `json:"bestParam,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Evals     uint64        `json:"evals"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Elapsed   time.Duration `json:"elapsedNs"`
	Error     string        `json:"error,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	switch j.State {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for the given spec. The spec's run
// ID doubles as the job ID, so the job, its checkpoints and its trace
// share one identifier; an unset ID is filled in here.
func (jm *JobManager) CreateJob(spec run.Spec) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if spec.RunID == "" {
		spec.RunID = uuid.New().String()
	}
	job := &Job{
		ID:        spec.RunID,
		State:     StatePending,
		Spec:      spec,
		Cost:      engine.Float(math.Inf(1)),
		BestCost:  engine.Float(math.Inf(1)),
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job
}

// Snapshot returns a copy of a job safe to serialize while the worker
// keeps mutating the original.
func (jm *JobManager) Snapshot(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return snapshotJob(job), true
}

// ListJobs returns copies of all jobs, most recently started first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, snapshotJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.After(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// bindCancel stores the cancel function of a started job so CancelJob
// can interrupt it.
func (jm *JobManager) bindCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// releaseCancel drops a finished job's cancel function.
func (jm *JobManager) releaseCancel(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, id)
}

// CancelJob requests an interrupt for a running job. The run observes
// the cancelled context at its next iteration boundary and terminates
// with reason external_interrupt; cancelling an already terminal job is
// a no-op.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.Terminal() {
		return nil
	}
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
	} else {
		// Not started yet; settle it directly.
		now := time.Now()
		job.State = StateCancelled
		job.EndTime = &now
	}
	return nil
}

// GetRunningJobs returns copies of all jobs currently in the running
// state.
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, snapshotJob(job))
		}
	}
	return runningJobs
}

func snapshotJob(job *Job) Job {
	snap := *job
	if job.BestParam != nil {
		snap.BestParam = append([]float64(nil), job.BestParam...)
	}
	if job.EndTime != nil {
		end := *job.EndTime
		snap.EndTime = &end
	}
	return snap
}
