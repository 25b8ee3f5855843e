// Package jobs runs ingestion asynchronously for the API.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/ingest"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the ingestion finished, possibly with
	// individual documents reported as failed.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the ingestion run failed.
	JobStatusFailed JobStatus = "failed"
)

// ErrJobNotFound is returned when a job id is unknown.
var ErrJobNotFound = errors.New("job not found")

// IngestJob tracks one asynchronous ingestion call.
type IngestJob struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
	// Documents names the uploaded files.
	Documents []string  `json:"documents"`
	Status    JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is set when the run failed as a whole.
	Error string `json:"error,omitempty"`

	// Filled from the ingestion report once the job completes.
	RunID           string `json:"run_id,omitempty"`
	Inserted        int    `json:"inserted"`
	DuplicateCount  int    `json:"duplicate_count"`
	Conflicts       int    `json:"conflicts"`
	FailedDocuments int    `json:"failed_documents"`
}

// Done reports whether the job reached a final state.
func (j *IngestJob) Done() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ApplyReport copies the counts of a finished ingestion onto the job.
func (j *IngestJob) ApplyReport(report *ingest.Report) {
	if report == nil {
		return
	}
	j.RunID = report.RunID
	j.Inserted = report.Inserted
	j.DuplicateCount = report.DuplicateCount
	j.Conflicts = report.Conflicts
	j.FailedDocuments = 0
	for _, d := range report.Documents {
		if d.Err != nil {
			j.FailedDocuments++
		}
	}
}

// IngestFunc performs one ingestion; *ingest.Service.Ingest satisfies it.
type IngestFunc func(ctx context.Context, userID string, docs []extraction.Document) (*ingest.Report, error)

// Publisher enqueues ingestion jobs.
type Publisher interface {
	// Publish enqueues docs for userID and returns the pending job.
	Publish(ctx context.Context, userID string, docs []extraction.Document) (*IngestJob, error)

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs, calling ingest for each one.
	Start(ctx context.Context, ingest IngestFunc) error

	// Stop stops consuming jobs and waits for the in-flight job to complete.
	Stop(ctx context.Context) error
}

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestJob) error

	// GetJob retrieves a job by ID, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)

	// ListJobs retrieves jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
}
