package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/bikepaths/internal/models"
)

// ErrRunInProgress is returned when a background run is already active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// JobStatus represents the state of a background run.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Runner runs the pipeline once. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, limit int) (models.RunSummary, error)
}

// Job is a pipeline run started in the background.
type Job struct {
	ID          string             `json:"id"`
	Status      JobStatus          `json:"status"`
	Limit       int                `json:"limit"`
	Phase       string             `json:"phase,omitempty"`
	Progress    int                `json:"progress"`
	Total       int                `json:"total"`
	Summary     *models.RunSummary `json:"summary,omitempty"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Limit:       j.Limit,
		Phase:       j.Phase,
		Progress:    j.Progress,
		Total:       j.Total,
		Summary:     j.Summary,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

func (j *Job) setProgress(phase string, done, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if phase != j.Phase {
		j.Phase = phase
		j.Progress, j.Total = 0, 0
	}
	// Concurrent writers may report out of order.
	if done > j.Progress {
		j.Progress = done
	}
	j.Total = total
}

// JobManager starts pipeline runs in the background, one at a time.
type JobManager struct {
	runner  Runner
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.RWMutex
	jobs    map[string]*Job
	running bool
	wg      sync.WaitGroup
}

// NewJobManager creates a job manager. Each run is bounded by timeout;
// zero means no bound.
func NewJobManager(runner Runner, timeout time.Duration, logger *slog.Logger) *JobManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobManager{
		runner:  runner,
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]*Job),
	}
}

// Start launches a run unless one is already in progress.
func (m *JobManager) Start(limit int) (*Job, error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrRunInProgress
	}
	job := &Job{
		ID:        uuid.New().String()[:8], // Short ID for convenience
		Status:    JobStatusRunning,
		Limit:     limit,
		StartedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("job started", "job_id", job.ID, "limit", limit)

	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.finish(job, nil, fmt.Errorf("internal panic: %v", r))
			}
		}()

		ctx := WithProgress(context.Background(), job.setProgress)
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}

		summary, err := m.runner.Run(ctx, limit)
		m.finish(job, &summary, err)
	}()

	return job.Snapshot(), nil
}

func (m *JobManager) finish(job *Job, summary *models.RunSummary, err error) {
	now := time.Now().UTC()

	job.mu.Lock()
	job.Summary = summary
	job.CompletedAt = &now
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
	} else {
		job.Status = JobStatusCompleted
	}
	job.mu.Unlock()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("job failed", "job_id", job.ID, "error", err)
		return
	}
	m.logger.Info("job completed", "job_id", job.ID, "processed", summary.RecordsProcessed)
}

// GetJob returns a copy of the job, or nil if unknown.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	return job.Snapshot()
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Snapshot())
	}

	// Sort by start time descending (most recent first)
	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return jobs
}

// Wait blocks until every started job has finished.
func (m *JobManager) Wait() {
	m.wg.Wait()
}
