package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/optrun/internal/engine"
)

// ProgressEvent represents a progress update event
type ProgressEvent struct {
	JobID     string       `json:"jobId"`
	State     JobState     `json:"state"`
	Iter      uint64       `json:"iter"`
	Cost      engine.Float `json:"cost"`
	BestCost  engine.Float `json:"bestCost"`
	Evals     uint64       `json:"evals"`
	ElapsedMS int64        `json:"elapsedMs"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// EventBroadcaster manages SSE connections for a job
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan ProgressEvent]bool // jobID -> set of client channels
	lastEvent map[string]ProgressEvent               // jobID -> last event for new clients
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]bool),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe adds a client to receive events for a job
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10) // Buffered to prevent blocking

	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]bool)
	}
	eb.clients[jobID][ch] = true

	// Send last event if available (for reconnecting clients)
	if lastEvent, ok := eb.lastEvent[jobID]; ok {
		select {
		case ch <- lastEvent:
		default:
			// Channel full, skip
		}
	}

	slog.Debug("SSE client subscribed", "jobID", jobID, "total_clients", len(eb.clients[jobID]))
	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[jobID]; ok {
		delete(clients, ch)
		close(ch)

		if len(clients) == 0 {
			delete(eb.clients, jobID)
		}
	}

	slog.Debug("SSE client unsubscribed", "jobID", jobID)
}

// Broadcast sends an event to all subscribed clients for a job
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	// Store last event
	eb.lastEvent[event.JobID] = event

	clients, ok := eb.clients[event.JobID]
	if !ok || len(clients) == 0 {
		return
	}

	for ch := range clients {
		select {
		case ch <- event:
			// Event sent successfully
		default:
			// Channel full, skip this client (prevents blocking)
			slog.Warn("SSE channel full, skipping event", "jobID", event.JobID)
		}
	}
}

// CleanupJob removes all clients and cached events for a job
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, ok := eb.clients[jobID]; ok {
		for ch := range clients {
			close(ch)
		}
		delete(eb.clients, jobID)
	}

	delete(eb.lastEvent, jobID)
	slog.Debug("Cleaned up SSE resources", "jobID", jobID)
}

// streamObserver bridges a run's observer notifications into the job
// record and the SSE broadcaster. Every notification refreshes the job;
// broadcasts are throttled so a fast run cannot flood subscribers, with
// init, new-best and final events always pushed through.
type streamObserver struct {
	jm       *JobManager
	jobID    string
	minGap   time.Duration
	lastSent time.Time
}

func newStreamObserver(jm *JobManager, jobID string) *streamObserver {
	return &streamObserver{jm: jm, jobID: jobID, minGap: 500 * time.Millisecond}
}

func (o *streamObserver) Name() string { return "stream" }

func (o *streamObserver) ObserveInit(solver string, v *engine.View, kv engine.KV) error {
	o.push(v, true)
	return nil
}

func (o *streamObserver) ObserveIter(v *engine.View, kv engine.KV) error {
	o.push(v, v.IsBest)
	return nil
}

func (o *streamObserver) ObserveFinal(v *engine.View) error {
	o.push(v, true)
	return nil
}

func (o *streamObserver) push(v *engine.View, force bool) {
	o.jm.UpdateJob(o.jobID, func(j *Job) {
		j.Iter = v.Iter
		j.Cost = engine.Float(v.Cost)
		j.BestCost = engine.Float(v.BestCost)
		j.BestParam = append([]float64(nil), v.BestParam...)
		j.Evals = totalEvals(v.FuncCounts)
		j.Elapsed = v.Elapsed
	})

	now := time.Now()
	if !force && now.Sub(o.lastSent) < o.minGap {
		return
	}
	o.lastSent = now

	snap, ok := o.jm.Snapshot(o.jobID)
	if !ok {
		return
	}
	o.jm.broadcaster.Broadcast(ProgressEvent{
		JobID:     o.jobID,
		State:     snap.State,
		Iter:      v.Iter,
		Cost:      engine.Float(v.Cost),
		BestCost:  engine.Float(v.BestCost),
		Evals:     totalEvals(v.FuncCounts),
		ElapsedMS: v.Elapsed.Milliseconds(),
		Reason:    string(v.Status.Reason),
		Timestamp: now,
	})
}

func totalEvals(counts map[string]uint64) uint64 {
	var total uint64
	for _, n := range counts {
		total += n
	}
	return total
}

// handleRunEvents handles SSE connections for job progress
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request, jobID string) {
	// Check if job exists
	job, exists := s.jobManager.Snapshot(jobID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Get flusher
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Subscribe to events
	eventChan := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, eventChan)

	// Send initial event with current job state
	initialEvent := ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		Iter:      job.Iter,
		Cost:      job.Cost,
		BestCost:  job.BestCost,
		Evals:     job.Evals,
		ElapsedMS: job.Elapsed.Milliseconds(),
		Reason:    job.Reason,
		Timestamp: time.Now(),
	}

	if err := writeSSEEvent(w, initialEvent); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	// Set up ping ticker to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	// Listen for events and client disconnect
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			// Client disconnected
			slog.Debug("SSE client disconnected", "jobID", jobID)
			return

		case event, ok := <-eventChan:
			if !ok {
				// Channel closed
				return
			}

			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			// Send ping to keep connection alive
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// SSE format: "data: {json}\n\n"
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
