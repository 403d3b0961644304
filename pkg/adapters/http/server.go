// Package http exposes the assistant over HTTP: runs are started with a
// POST and streamed back as server-sent events.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/dsflow"
	"github.com/aretw0/dsflow/internal/logging"
	"github.com/aretw0/dsflow/internal/presentation/graph"
	"github.com/aretw0/dsflow/internal/workflow"
	"github.com/aretw0/dsflow/pkg/dataset"
	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
	"github.com/aretw0/dsflow/pkg/runner"
)

// Assistant is the part of dsflow.Assistant the server drives.
type Assistant interface {
	Invoke(ctx context.Context, req dsflow.Request) <-chan domain.StepEvent
}

// RunRequest is the body of POST /runs. Datasets may be described inline
// or loaded from CSV files readable by the server.
type RunRequest struct {
	dsflow.Request
	DatasetPath     string `json:"dataset_path,omitempty"`
	TestDatasetPath string `json:"test_dataset_path,omitempty"`
}

// Server serves runs, stored run states and the workflow diagram.
type Server struct {
	assistant Assistant
	store     ports.RunStore
	streams   *StreamManager
	metrics   http.Handler
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server. Stored runs are read from store directly,
// so inspecting a run never waits on its lock.
func NewServer(assistant Assistant, store ports.RunStore, opts ...Option) *Server {
	s := &Server{
		assistant: assistant,
		store:     store,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.health)
	r.Get("/graph", s.graph)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.startRun)
		r.Get("/", s.listRuns)
		r.Get("/{id}", s.getRun)
		r.Delete("/{id}", s.deleteRun)
		r.Get("/{id}/events", s.watchRun)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
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

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// graph renders the workflow as Mermaid; ?run=<id> highlights a stored run.
func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.GraphOverlay
	if runID := r.URL.Query().Get("run"); runID != "" {
		state, err := s.store.Load(r.Context(), runID)
		if err != nil {
			s.storeError(w, err)
			return
		}
		overlay = graph.OverlayFromState(state)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, graph.GenerateMermaid(workflow.Topology(), overlay))
}

// startRun handles POST /runs and streams the run as SSE.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("startRun: invalid request body", "err", err)
		return
	}
	if err := loadDatasets(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.logger.Warn("startRun: rejected dataset", "err", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range s.assistant.Invoke(r.Context(), body.Request) {
		s.streams.Broadcast(ev)
		if err := writeEvent(w, ev); err != nil {
			s.logger.Warn("startRun: client write failed", "run_id", ev.RunID, "err", err)
			continue
		}
		flusher.Flush()
	}
}

// loadDatasets resolves the dataset paths of a run request.
func loadDatasets(body *RunRequest) error {
	var err error
	if body.DatasetPath != "" {
		if body.Dataset, err = dataset.LoadField(runner.FieldDatasetPath, body.DatasetPath); err != nil {
			return err
		}
	}
	if body.TestDatasetPath != "" {
		if body.TestDataset, err = dataset.LoadField(runner.FieldTestDatasetPath, body.TestDatasetPath); err != nil {
			return err
		}
	}
	return nil
}

// watchRun follows the events of a run started by another client.
func (s *Server) watchRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	runID := chi.URLParam(r, "id")
	ch, cancel := s.streams.Subscribe(runID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Kind == domain.EventDone {
				return
			}
		}
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"runs": ids})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	s.logger.Error("run store failed", "err", err)
	http.Error(w, "run store unavailable", http.StatusInternalServerError)
}

func writeEvent(w http.ResponseWriter, ev domain.StepEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
