package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Status     JobStatus      `json:"status"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Logger     *slog.Logger   `json:"-"`
	cancelFunc context.CancelFunc
	cancelled  bool
	// running stays set until the handler returns, even after a cancel.
	running bool
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// Task defines the specific logic for a job type.
type Task interface {
	MetadataKeys() []string
	Execute(ctx context.Context, job *Job, progressUpdater func(int, string)) (map[string]any, error)
	Cleanup(job *Job) error
}

type TaskHandler interface {
	Execute(ctx context.Context, job *Job, progressUpdater func(int, string)) (map[string]any, error)
	Cancel(jobID string) error
}

// BaseTaskHandler provides a base implementation for TaskHandler.
type BaseTaskHandler struct {
	Task Task
}

// NewBaseTaskHandler creates a new BaseTaskHandler.
func NewBaseTaskHandler(task Task) *BaseTaskHandler {
	return &BaseTaskHandler{Task: task}
}

// Execute validates the job metadata and runs the task.
func (h *BaseTaskHandler) Execute(ctx context.Context, job *Job, progressUpdater func(int, string)) (map[string]any, error) {
	job.Logger.Info("Starting job", "name", job.Name)

	for _, key := range h.Task.MetadataKeys() {
		if _, ok := job.Metadata[key]; !ok {
			err := fmt.Errorf("missing %s in job metadata", key)
			job.Logger.Error("Error: " + err.Error())
			return nil, err
		}
	}

	defer func() {
		if err := h.Task.Cleanup(job); err != nil {
			job.Logger.Error("Error during job cleanup", "error", err)
		}
	}()

	stats, err := h.Task.Execute(ctx, job, func(percentage int, status string) {
		progressUpdater(percentage, status)
		job.Logger.Debug("Progress", "percentage", percentage, "status", status)
	})
	if err != nil {
		job.Logger.Error("Error during job execution", "error", err)
		return stats, err
	}

	job.Logger.Info("Job finished successfully", "name", job.Name)
	return stats, nil
}

// Cancel is a no-op; cancellation reaches the task through its context.
func (h *BaseTaskHandler) Cancel(jobID string) error {
	return nil
}

// JobService defines the interface for job management that other services will use
type JobService interface {
	StartJob(jobType string, name string, metadata map[string]any) (string, error)
	GetJob(jobID string) (*Job, bool)
	CancelJob(jobID string) error
	GetJobs() []*Job
}

// Service runs jobs in the background, one job per type at a time.
type Service struct {
	jobs     map[string]*Job
	handlers map[string]TaskHandler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

func NewService() *Service {
	return &Service{
		jobs:     make(map[string]*Job),
		handlers: make(map[string]TaskHandler),
	}
}

func (s *Service) RegisterHandler(jobType string, handler TaskHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[jobType] = handler
}

func (s *Service) StartJob(jobType string, name string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handlers[jobType]; !ok {
		return "", fmt.Errorf("no handler registered for job type %q", jobType)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Name:      name,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  metadata,
	}
	job.Logger = slog.Default().With("job_id", job.ID, "job_type", jobType)
	s.jobs[job.ID] = job

	// Check if we can start this job immediately
	if !s.isJobTypeRunning(jobType) {
		s.launch(job)
	}

	return job.ID, nil
}

// launch must be called with s.mu held.
func (s *Service) launch(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	job.Status = JobStatusRunning
	job.Message = "Starting..."
	job.UpdatedAt = time.Now()
	job.cancelFunc = cancel
	job.running = true
	s.wg.Add(1)
	go s.executeJob(ctx, job)
}

func (s *Service) executeJob(ctx context.Context, job *Job) {
	defer s.wg.Done()

	s.mu.RLock()
	handler := s.handlers[job.Type]
	s.mu.RUnlock()

	stats, err := handler.Execute(ctx, job, func(progress int, message string) {
		s.UpdateJobProgress(job.ID, progress, message)
	})

	s.mu.Lock()
	job.cancelFunc()
	job.running = false
	if stats != nil {
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}
		maps.Copy(job.Metadata, stats)
	}
	switch {
	case job.cancelled || errors.Is(err, context.Canceled):
		s.setStatus(job, JobStatusCancelled, "Job cancelled")
	case err != nil:
		job.Error = err.Error()
		s.setStatus(job, JobStatusFailed, err.Error())
	default:
		message := "Job completed successfully"
		if msg, ok := job.Metadata["msg"].(string); ok && msg != "" {
			message = msg
		}
		s.setStatus(job, JobStatusCompleted, message)
	}
	s.mu.Unlock()

	// After job completes, check for pending jobs of the same type
	s.startNextPendingJob(job.Type)
}

// setStatus must be called with s.mu held.
func (s *Service) setStatus(job *Job, status JobStatus, message string) {
	job.Status = status
	job.Message = message
	job.UpdatedAt = time.Now()
	if status == JobStatusCompleted {
		job.Progress = 100
	}
}

func (s *Service) UpdateJobProgress(jobID string, progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, exists := s.jobs[jobID]; exists {
		// Don't update progress if job is in a terminal state
		if job.Finished() {
			return
		}
		job.Progress = progress
		job.Message = message
		job.UpdatedAt = time.Now()
	}
}

func (s *Service) CancelJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return ErrJobNotFound
	}
	if job.Finished() {
		return nil
	}

	job.cancelled = true
	s.setStatus(job, JobStatusCancelled, "Job cancelled")

	if job.cancelFunc != nil {
		job.cancelFunc()
	}
	if handler, exists := s.handlers[job.Type]; exists {
		return handler.Cancel(jobID)
	}
	return nil
}

// GetJob returns a snapshot of the job.
func (s *Service) GetJob(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobID]
	if !exists {
		return nil, false
	}
	return snapshot(job), true
}

func (s *Service) GetJobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, snapshot(job))
	}
	return jobs
}

// Wait blocks until every started job has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func snapshot(job *Job) *Job {
	cp := *job
	cp.Metadata = maps.Clone(job.Metadata)
	cp.cancelFunc = nil
	return &cp
}

func (s *Service) isJobTypeRunning(jobType string) bool {
	for _, job := range s.jobs {
		if job.Type == jobType && job.running {
			return true
		}
	}
	return false
}

func (s *Service) startNextPendingJob(jobType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isJobTypeRunning(jobType) {
		return
	}
	// Find the oldest pending job of this type
	var nextJob *Job
	for _, job := range s.jobs {
		if job.Type == jobType && job.Status == JobStatusPending {
			if nextJob == nil || job.CreatedAt.Before(nextJob.CreatedAt) {
				nextJob = job
			}
		}
	}
	if nextJob != nil {
		s.launch(nextJob)
	}
}

func (s *Service) CleanupOldJobs(maxAge time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > maxAge && job.Finished() {
			delete(s.jobs, id)
		}
	}
}
