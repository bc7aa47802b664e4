package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/FocuswithJustin/xrefgraph/core/errors"
	"github.com/FocuswithJustin/xrefgraph/internal/logging"
	"github.com/FocuswithJustin/xrefgraph/internal/pipeline"
	"github.com/FocuswithJustin/xrefgraph/internal/source"
	"github.com/FocuswithJustin/xrefgraph/internal/validation"
)

// JobStatus is the state of a rebuild job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobRequest is the POST /jobs body. Every field is optional.
type JobRequest struct {
	// Input names a dataset under the server's data directory. Empty uses
	// the configured input.
	Input        string `json:"input,omitempty"`
	Format       string `json:"format,omitempty"`
	PreviewLimit int    `json:"preview_limit,omitempty"`
}

// Job is an asynchronous rebuild of the served artifacts.
type Job struct {
	ID          string            `json:"id"`
	Status      JobStatus         `json:"status"`
	Stage       string            `json:"stage,omitempty"`
	Progress    int               `json:"progress"`
	Summary     *pipeline.Summary `json:"summary,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrorCode   string            `json:"error_code,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
	Request     JobRequest        `json:"request"`

	cfg    pipeline.Config
	ctx    context.Context
	cancel context.CancelFunc
}

// JobStore keeps jobs in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a pending job whose context derives from parent.
func (s *JobStore) Create(parent context.Context, req JobRequest, cfg pipeline.Config) *Job {
	ctx, cancel := context.WithCancel(parent)
	now := time.Now().UTC().Format(time.RFC3339)
	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Request:   req,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get returns a copy of the job with the given id.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of all jobs, oldest first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// update applies fn to a job unless it has already finished.
func (s *JobStore) update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.terminal() {
		return
	}
	fn(job)
	now := time.Now().UTC().Format(time.RFC3339)
	job.UpdatedAt = now
	if job.Status.terminal() {
		job.CompletedAt = now
	}
}

var (
	errJobNotFound = errors.New("job not found")
	errJobFinished = errors.New("job already finished")
)

// Cancel stops a pending or running job.
func (s *JobStore) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return errJobNotFound
	}
	if job.Status.terminal() {
		return fmt.Errorf("%w (status: %s)", errJobFinished, job.Status)
	}
	job.cancel()
	now := time.Now().UTC().Format(time.RFC3339)
	job.Status = JobStatusCancelled
	job.UpdatedAt = now
	job.CompletedAt = now
	return nil
}

// jobConfig turns a request into a pipeline configuration, resolving the
// input under the data directory.
func (s *Server) jobConfig(req JobRequest) (pipeline.Config, int, *APIError) {
	cfg := s.cfg.Build
	if req.Input != "" {
		if s.cfg.DataDir == "" {
			return cfg, http.StatusBadRequest, &APIError{"INPUT_NOT_ALLOWED", "This server only rebuilds its configured input"}
		}
		path, err := validation.Within(s.cfg.DataDir, req.Input)
		if err != nil {
			return cfg, http.StatusBadRequest, &APIError{"INVALID_PATH", err.Error()}
		}
		cfg.Input = path
	}
	if cfg.Input == "" {
		return cfg, http.StatusBadRequest, &APIError{"MISSING_PARAMS", "input is required"}
	}
	if _, err := validation.CheckDataset(cfg.Input); err != nil {
		if os.IsNotExist(err) {
			return cfg, http.StatusNotFound, &APIError{"NOT_FOUND", "Input file not found"}
		}
		return cfg, http.StatusBadRequest, &APIError{"INVALID_FILE_TYPE", err.Error()}
	}

	if req.Format != "" {
		f, err := source.ParseFormat(req.Format)
		if err != nil {
			return cfg, http.StatusBadRequest, &APIError{"INVALID_PARAM", err.Error()}
		}
		cfg.Format = f
	}
	if req.PreviewLimit < 0 {
		return cfg, http.StatusBadRequest, &APIError{"INVALID_PARAM", "preview_limit must be positive"}
	}
	if req.PreviewLimit > 0 {
		cfg.PreviewLimit = req.PreviewLimit
	}
	return cfg, 0, nil
}

// runJob builds in the background. Builds are serialized because they all
// write into the served directory.
func (s *Server) runJob(job *Job) {
	s.jobsWG.Add(1)
	go func() {
		defer s.jobsWG.Done()

		s.buildMu.Lock()
		defer s.buildMu.Unlock()
		if job.ctx.Err() != nil {
			s.jobs.update(job.ID, func(j *Job) { j.Status = JobStatusCancelled })
			return
		}

		s.jobs.update(job.ID, func(j *Job) { j.Status = JobStatusRunning })
		logging.JobEvent(job.ID, string(JobStatusRunning), "input", job.cfg.Input)

		sum, err := pipeline.Run(job.ctx, job.cfg, func(stage string, percent int, msg string) {
			s.jobs.update(job.ID, func(j *Job) {
				j.Stage = stage
				j.Progress = percent
			})
			s.hub.Broadcast(ProgressMessage{
				Type: MessageProgress, JobID: job.ID, Stage: stage, Progress: percent, Message: msg,
			})
		})

		switch {
		case job.ctx.Err() != nil:
			s.jobs.update(job.ID, func(j *Job) { j.Status = JobStatusCancelled })
			logging.JobEvent(job.ID, string(JobStatusCancelled))
			s.hub.Broadcast(ProgressMessage{Type: MessageError, JobID: job.ID, Message: "job cancelled"})
		case err != nil:
			err, code := jobError(err)
			s.jobs.update(job.ID, func(j *Job) {
				j.Status = JobStatusFailed
				j.Error = err.Error()
				j.ErrorCode = code
			})
			logging.JobEvent(job.ID, string(JobStatusFailed), "error", err, "code", code)
			s.hub.Broadcast(ProgressMessage{Type: MessageError, JobID: job.ID, Message: err.Error()})
		default:
			s.jobs.update(job.ID, func(j *Job) {
				j.Status = JobStatusCompleted
				j.Progress = 100
				j.Summary = sum
			})
			logging.JobEvent(job.ID, string(JobStatusCompleted),
				"connections", sum.Connections, "duration", sum.Duration)
			s.hub.Broadcast(ProgressMessage{
				Type: MessageComplete, JobID: job.ID, Progress: 100,
				Message: fmt.Sprintf("%d connections written", sum.Connections),
				Data:    map[string]any{"run_id": sum.RunID, "connections": sum.Connections},
			})
			s.reload("job")
		}
		job.cancel()
	}()
}

// handleJobs serves GET /jobs and POST /jobs.
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := s.jobs.List()
		write(w, http.StatusOK, APIResponse{
			Success: true,
			Data:    jobs,
			Meta:    &APIMeta{Total: len(jobs), Timestamp: time.Now().UTC().Format(time.RFC3339)},
		})
	case http.MethodPost:
		var req JobRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
				respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
				return
			}
		}
		cfg, status, apiErr := s.jobConfig(req)
		if apiErr != nil {
			respondError(w, status, apiErr.Code, apiErr.Message)
			return
		}
		job := s.jobs.Create(s.ctx, req, cfg)
		logging.JobEvent(job.ID, string(JobStatusPending), "input", cfg.Input)
		s.runJob(job)
		created, _ := s.jobs.Get(job.ID)
		respond(w, http.StatusCreated, created)
	default:
		allowMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleJobByID serves GET and DELETE /jobs/{id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" {
		respondError(w, http.StatusBadRequest, "MISSING_ID", "Job ID is required")
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Job ID must be a UUID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		job, ok := s.jobs.Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
			return
		}
		respond(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.jobs.Cancel(id); err != nil {
			if errors.Is(err, errJobNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", "Job not found")
				return
			}
			respondError(w, http.StatusConflict, "CANCEL_FAILED", err.Error())
			return
		}
		logging.JobEvent(id, string(JobStatusCancelled))
		respond(w, http.StatusOK, map[string]string{"message": "Job cancelled"})
	default:
		allowMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// jobError assigns a failed build an error code. Failures outside the known
// categories are wrapped with ErrInternal.
func jobError(err error) (error, string) {
	var ioErr *apperrors.IOError
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return err, "NOT_FOUND"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return err, "INVALID_INPUT"
	case apperrors.Is(err, apperrors.ErrUnsupported):
		return err, "UNSUPPORTED"
	case apperrors.As(err, &ioErr):
		return err, "IO_ERROR"
	case apperrors.Is(err, apperrors.ErrInternal):
		return err, "INTERNAL"
	}
	return fmt.Errorf("%w: %w", apperrors.ErrInternal, err), "INTERNAL"
}
