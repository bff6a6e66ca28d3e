package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/CedarPress/core/model"
	"github.com/FocuswithJustin/CedarPress/internal/logging"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents an asynchronous document generation run.
type Job struct {
	ID          string                  `json:"id"`
	Status      JobStatus               `json:"status"`
	Progress    int                     `json:"progress"` // 0-100
	Stage       string                  `json:"stage,omitempty"`
	Result      *model.FinishedDocument `json:"result,omitempty"`
	Error       string                  `json:"error,omitempty"`
	CreatedAt   string                  `json:"created_at"`
	UpdatedAt   string                  `json:"updated_at"`
	CompletedAt string                  `json:"completed_at,omitempty"`
	Request     model.DocumentRequest   `json:"request"`
	ctx         context.Context
	cancel      context.CancelFunc
}

// JobStore manages document jobs in memory.
type JobStore struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobStore creates a new job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
	}
}

// Create creates a new job for the request and returns it. The job's
// context outlives the HTTP request that created it.
func (s *JobStore) Create(req model.DocumentRequest) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC().Format(time.RFC3339)

	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.jobs[job.ID] = job
	return job
}

// Get retrieves a snapshot of a job by ID. Callers get a copy so they
// can marshal it without racing the running job's updates.
func (s *JobStore) Get(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// Update updates a job's status and progress. A negative progress keeps
// the job's current value.
func (s *JobStore) Update(id string, status JobStatus, progress int, result *model.FinishedDocument, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	job.Status = status
	if progress >= 0 {
		job.Progress = progress
	}
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if result != nil {
		job.Result = result
	}

	if errMsg != "" {
		job.Error = errMsg
	}

	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = job.UpdatedAt
	}

	return nil
}

// SetProgress records pipeline progress on a running job.
func (s *JobStore) SetProgress(id, stage string, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return
	}

	job.Stage = stage
	job.Progress = percent
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Delete removes a job from the store, cancelling it first if needed.
func (s *JobStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status == JobStatusRunning || job.Status == JobStatusPending {
		if job.cancel != nil {
			job.cancel()
		}
	}

	delete(s.jobs, id)
	return nil
}

// Count reports how many jobs the store holds.
func (s *JobStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns all jobs, most recently created first.
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt > jobs[j].CreatedAt
	})
	return jobs
}

// Cancel cancels a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return fmt.Errorf("job cannot be cancelled (status: %s)", job.Status)
	}

	if job.cancel != nil {
		job.cancel()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	job.Status = JobStatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = now

	return nil
}

// runJob executes a document job in a goroutine, streaming pipeline
// progress to the job's WebSocket subscribers as it advances.
func (s *Server) runJob(job *Job) {
	go func() {
		s.jobs.Update(job.ID, JobStatusRunning, 0, nil, "")

		gen, err := s.newGenerator(func(stage, resource string, percent int) {
			s.jobs.SetProgress(job.ID, stage, percent)
			s.hub.Progress(job.ID, stage, resource, percent)
		})
		if err != nil {
			s.jobs.Update(job.ID, JobStatusFailed, -1, nil, err.Error())
			s.hub.Error(job.ID, err.Error())
			return
		}

		fin, err := gen.Run(job.ctx, job.Request)
		switch {
		case err == nil:
			s.jobs.Update(job.ID, JobStatusCompleted, 100, fin, "")
			s.hub.Complete(job.ID, fin.Key)
		case job.ctx.Err() != nil:
			// Cancel already marked the job; leave its status alone.
			logging.Info("job cancelled", "job_id", job.ID)
			s.hub.Error(job.ID, "job cancelled")
		default:
			s.jobs.Update(job.ID, JobStatusFailed, -1, nil, err.Error())
			s.hub.Error(job.ID, err.Error())
		}
	}()
}
