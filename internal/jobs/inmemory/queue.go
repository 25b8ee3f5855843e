package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/google/uuid"
)

type task struct {
	job  *jobs.IngestJob
	docs []extraction.Document
}

// Queue is an in-memory publisher and consumer backed by a channel.
// A single worker runs jobs one at a time, so ingestions for the same
// user never overlap. Failed jobs are not retried.
type Queue struct {
	tasks     chan task
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	started   bool
	now       func() time.Time
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks.
func NewQueue(bufferSize int, store jobs.JobStore) *Queue {
	return &Queue{
		tasks:     make(chan task, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Publish enqueues docs for asynchronous ingestion.
func (q *Queue) Publish(ctx context.Context, userID string, docs []extraction.Document) (*jobs.IngestJob, error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("Publish: queue is closed")
	}

	job := &jobs.IngestJob{
		JobID:     uuid.NewString(),
		UserID:    userID,
		Status:    jobs.JobStatusPending,
		CreatedAt: q.now(),
	}
	for _, d := range docs {
		job.Documents = append(job.Documents, d.Name)
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("Publish: saving job: %w", err)
	}

	select {
	case q.tasks <- task{job: job, docs: docs}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closeChan:
		return nil, fmt.Errorf("Publish: queue is closed")
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.JobID).
		Int("documents", len(docs)).
		Msg("Ingestion job queued")

	jobCopy := *job
	return &jobCopy, nil
}

// Start launches the worker. It returns immediately.
func (q *Queue) Start(ctx context.Context, ingest jobs.IngestFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("Start: queue is closed")
	}
	if q.started {
		return fmt.Errorf("Start: queue already started")
	}
	q.started = true

	q.wg.Add(1)
	go q.worker(ctx, ingest)
	return nil
}

func (q *Queue) worker(ctx context.Context, ingest jobs.IngestFunc) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case t := <-q.tasks:
			q.process(ctx, t, ingest)
		}
	}
}

func (q *Queue) process(ctx context.Context, t task, ingest jobs.IngestFunc) {
	job := t.job
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("user_id", job.UserID).
		Logger()

	started := q.now()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	q.save(ctx, job)

	report, err := ingest(logger.WithContext(ctx, log), job.UserID, t.docs)

	completed := q.now()
	job.CompletedAt = &completed
	if err != nil {
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Ingestion job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.ApplyReport(report)
		log.Info().
			Int("inserted", job.Inserted).
			Dur("duration", completed.Sub(started)).
			Msg("Ingestion job completed")
	}
	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.IngestJob) {
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop closes the queue and waits for the in-flight job to complete. Jobs
// still queued stay pending.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
