// Package server exposes the optimization engine over HTTP: specs are
// submitted as jobs, each job runs on its own worker goroutine, and
// progress streams out over SSE while checkpoints, traces and metrics
// are served from the same store the CLI uses.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/optrun/internal/run"
	"github.com/cwbudde/optrun/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	registry   *prometheus.Registry
	addr       string
	server     *http.Server
}

// NewServer creates a new HTTP server persisting run artifacts under
// dataDir. keep bounds checkpoint retention per run, 0 keeps all.
func NewServer(addr, dataDir string, keep int) (*Server, error) {
	fs, err := store.NewFSStore(dataDir, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return &Server{
		jobManager: NewJobManager(),
		store:      fs,
		registry:   prometheus.NewRegistry(),
		addr:       addr,
	}, nil
}

// routes builds the server's handler tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunsWithID)

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr, "data_dir", s.store.BaseDir())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealthz handles GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRuns handles /api/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/runs/{id} and its subresources
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.handleGetRun(w, r, jobID)
		case http.MethodDelete:
			s.handleCancelRun(w, r, jobID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case parts[1] == "events":
		s.handleRunEvents(w, r, jobID)
	case parts[1] == "trace":
		s.handleGetTrace(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var spec run.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Artifacts always land in the server's store, whatever data
	// directory the submitted spec names.
	spec.Normalize()
	spec.DataDir = s.store.BaseDir()

	// Server runs log through their SSE stream and trace, not the
	// process logger.
	spec.Quiet = true

	if err := spec.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(spec)

	// Start worker in background
	go runJob(context.Background(), s.jobManager, s, job.ID)

	snap, _ := s.jobManager.Snapshot(job.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.Snapshot(jobID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelRun handles DELETE /api/runs/{id}: the run terminates
// with reason external_interrupt at its next iteration boundary.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request, jobID string) {
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "status": "cancelling"})
}

// handleGetTrace handles GET /api/runs/{id}/trace, serving the raw
// JSONL cost history.
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.Snapshot(jobID); !exists {
		// Runs from earlier server lifetimes still have artifacts on
		// disk; fall through to the store for those.
		if _, err := s.store.Iterations(jobID); err != nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
	}

	tr, err := store.NewTraceReader(s.store.BaseDir(), jobID)
	if err != nil {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read trace: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+"-trace.jsonl"))
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			slog.Error("Failed to stream trace entry", "job_id", jobID, "error", err)
			return
		}
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
