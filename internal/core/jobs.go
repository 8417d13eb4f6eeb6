package core

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/vaultetl/internal/ingest"
	"github.com/JonMunkholm/vaultetl/internal/transform"
	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a background import.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobError
}

// ImportJob is a snapshot of a background import.
type ImportJob struct {
	ID         string         `json:"id"`
	FileName   string         `json:"file_name"`
	Status     JobStatus      `json:"status"`
	Format     ingest.Format  `json:"format,omitempty"`
	Kind       transform.Kind `json:"kind,omitempty"`
	Total      int            `json:"total"`
	Processed  int            `json:"processed"`
	Inserted   int            `json:"inserted"`
	Progress   float64        `json:"progress"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"message,omitempty"`
	Code       string         `json:"code,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Percent returns processed/total as a percentage rounded to one decimal.
// An empty job is complete.
func Percent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(processed)*1000/float64(total)) / 10
}

// ErrJobNotFound is returned for ids the registry does not know.
var ErrJobNotFound = errors.New("job not found")

// JobRegistry holds the state of background imports. It is safe for
// concurrent use; readers always receive copies.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*ImportJob
}

// NewJobRegistry returns an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*ImportJob)}
}

// Create registers a queued job for fileName and returns its snapshot.
func (r *JobRegistry) Create(fileName string) ImportJob {
	job := &ImportJob{
		ID:        uuid.New().String(),
		FileName:  fileName,
		Status:    JobQueued,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return *job
}

// Get returns a copy of the job with id.
func (r *JobRegistry) Get(id string) (ImportJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return ImportJob{}, false
	}
	return job.snapshot(), true
}

// List returns copies of all jobs, newest first.
func (r *JobRegistry) List() []ImportJob {
	r.mu.RLock()
	out := make([]ImportJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered jobs.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Close discards every job. Called once at shutdown.
func (r *JobRegistry) Close() {
	r.mu.Lock()
	clear(r.jobs)
	r.mu.Unlock()
}

// update applies fn to the job under the write lock. Terminal jobs are
// frozen.
func (r *JobRegistry) update(id string, fn func(*ImportJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status.Terminal() {
		return
	}
	fn(job)
}

func (r *JobRegistry) start(id string) {
	r.update(id, func(j *ImportJob) {
		now := time.Now().UTC()
		j.Status = JobProcessing
		j.StartedAt = &now
	})
}

func (r *JobRegistry) describe(id string, format ingest.Format, kind transform.Kind, total int) {
	r.update(id, func(j *ImportJob) {
		j.Format = format
		j.Kind = kind
		j.Total = total
		j.Progress = Percent(j.Processed, total)
	})
}

// advance moves the counters forward; they never decrease.
func (r *JobRegistry) advance(id string, processed, inserted int) {
	r.update(id, func(j *ImportJob) {
		if processed > j.Processed {
			j.Processed = processed
		}
		if inserted > j.Inserted {
			j.Inserted = inserted
		}
		j.Progress = Percent(j.Processed, j.Total)
	})
}

func (r *JobRegistry) complete(id string, res ImportResult) {
	r.update(id, func(j *ImportJob) {
		now := time.Now().UTC()
		j.Format = res.Format
		j.Kind = res.Kind
		j.Total = res.Total
		j.Processed = res.Processed
		j.Inserted = res.Inserted
		j.Progress = 100
		j.Status = JobCompleted
		j.FinishedAt = &now
	})
}

func (r *JobRegistry) fail(id string, err error) {
	ue := NewUserError(err)
	r.update(id, func(j *ImportJob) {
		now := time.Now().UTC()
		j.Status = JobError
		j.Error = err.Error()
		j.Message = ue.Message
		j.Code = ue.Code
		j.FinishedAt = &now
	})
}

func (j *ImportJob) snapshot() ImportJob {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	return cp
}
