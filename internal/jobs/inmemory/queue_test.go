package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/pipeline"
)

func waitFor(t *testing.T, store *Store, jobID string) *jobs.IngestJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob() error = %v", err)
		}
		if job.Done() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestQueue_RunsJobs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ingestFn := func(ctx context.Context, userID string, docs []extraction.Document) (*ingest.Report, error) {
		if userID == "broken" {
			return nil, errors.New("inserting transactions: backend down")
		}
		return &ingest.Report{
			RunID:          "run-1",
			Inserted:       4,
			DuplicateCount: 1,
			Documents: []pipeline.DocumentReport{
				{Name: docs[0].Name, Records: 5},
				{Name: "bad.pdf", Err: errors.New("unreadable")},
			},
		}, nil
	}
	if err := q.Start(ctx, ingestFn); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := q.Start(ctx, ingestFn); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	job, err := q.Publish(ctx, "u1", []extraction.Document{{Name: "march.pdf"}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if job.Status != jobs.JobStatusPending || len(job.Documents) != 1 {
		t.Errorf("published job = %+v", job)
	}

	done := waitFor(t, store, job.JobID)
	if done.Status != jobs.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if done.RunID != "run-1" || done.Inserted != 4 || done.DuplicateCount != 1 || done.FailedDocuments != 1 {
		t.Errorf("completed job = %+v", done)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("timestamps not set: %+v", done)
	}

	failed, _ := q.Publish(ctx, "broken", []extraction.Document{{Name: "x.pdf"}})
	got := waitFor(t, store, failed.JobID)
	if got.Status != jobs.JobStatusFailed || got.Error == "" {
		t.Errorf("failed job = %+v", got)
	}
}

func TestQueue_RunsOneJobAtATime(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var mu sync.Mutex
	running, maxRunning := 0, 0
	ingestFn := func(ctx context.Context, userID string, docs []extraction.Document) (*ingest.Report, error) {
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
		return &ingest.Report{}, nil
	}
	if err := q.Start(ctx, ingestFn); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := q.Publish(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		ids = append(ids, job.JobID)
	}
	for _, id := range ids {
		waitFor(t, store, id)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxRunning != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", maxRunning)
	}
}

func TestQueue_ClosedRejectsPublish(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := q.Publish(context.Background(), "u1", nil); err == nil {
		t.Error("Publish() after Close error = nil, want error")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("Start() after Close error = nil, want error")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = s.SaveJob(ctx, &jobs.IngestJob{JobID: "a", UserID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base})
	_ = s.SaveJob(ctx, &jobs.IngestJob{JobID: "b", UserID: "u1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)})
	_ = s.SaveJob(ctx, &jobs.IngestJob{JobID: "c", UserID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Hour)})

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{name: "all newest first", filter: jobs.JobFilter{}, want: []string{"c", "b", "a"}},
		{name: "by user", filter: jobs.JobFilter{UserID: "u1"}, want: []string{"b", "a"}},
		{name: "by status", filter: jobs.JobFilter{Status: jobs.JobStatusCompleted}, want: []string{"c", "a"}},
		{name: "limit", filter: jobs.JobFilter{Limit: 1}, want: []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob(missing) error = %v, want ErrJobNotFound", err)
	}
	if err := s.SaveJob(ctx, &jobs.IngestJob{}); err == nil {
		t.Error("SaveJob(no id) error = nil, want error")
	}
}
