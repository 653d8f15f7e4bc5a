// Package server exposes pipeline health, collection stats, the latest
// GeoJSON snapshot and background runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/raphaelgruber/bikepaths/internal/db"
	"github.com/raphaelgruber/bikepaths/internal/metrics"
	"github.com/raphaelgruber/bikepaths/internal/models"
	"github.com/raphaelgruber/bikepaths/internal/service"
)

const defaultRunHistory = 20

// Pipeline is the part of *service.Pipeline the server reads from.
type Pipeline interface {
	HealthCheck(ctx context.Context) service.HealthReport
	Metrics() *metrics.Collector
}

// Store is the part of *db.Client the server reads from.
type Store interface {
	CollectionStats(ctx context.Context) (*db.CollectionStats, error)
	LatestSnapshot(ctx context.Context) ([]byte, error)
	ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error)
}

// Server wraps the HTTP mux with its dependencies and lifecycle.
type Server struct {
	pipeline Pipeline
	store    Store
	jobs     *service.JobManager
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a server and registers its routes.
func New(pipeline Pipeline, store Store, jobs *service.JobManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline: pipeline,
		store:    store,
		jobs:     jobs,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /geojson", s.handleGeoJSON)
	s.mux.HandleFunc("GET /runs", s.handleRunHistory)
	s.mux.HandleFunc("POST /jobs", s.handleStartJob)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	return s
}

// Handler returns the routes wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.logger)(s.mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// waits for background runs to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.jobs != nil {
		s.jobs.Wait()
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.pipeline.HealthCheck(r.Context())
	status := http.StatusOK
	if report.Status == service.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type statsResponse struct {
	Collection *db.CollectionStats `json:"collection"`
	Metrics    metrics.Snapshot    `json:"metrics"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	stats, err := s.store.CollectionStats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Collection: stats,
		Metrics:    s.pipeline.Metrics().Snapshot(),
	})
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	data, err := s.store.LatestSnapshot(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "no snapshot saved yet")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// runView flattens the record id of a stored run.
type runView struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Limit       int            `json:"record_limit"`
	SourceURL   string         `json:"source_url"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit, err := queryInt(r, "limit", defaultRunHistory)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		v := runView{
			ID:          run.RunID(),
			Status:      run.Status,
			Limit:       run.Limit,
			SourceURL:   run.SourceURL,
			Result:      run.Result,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
		}
		if run.Error != nil {
			v.Error = *run.Error
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "background runs are disabled")
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	job, err := s.jobs.Start(limit)
	if errors.Is(err, service.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, []*service.Job{})
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.ListJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	var job *service.Job
	if s.jobs != nil {
		job = s.jobs.GetJob(r.PathValue("id"))
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return false
	}
	return true
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if service.IsConnectivity(err) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("store request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
