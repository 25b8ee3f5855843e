package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
)

func tx(fp string, day int) domain.Transaction {
	return domain.Transaction{
		ActivityDescription: fp,
		Fingerprint:         fp,
		TransactionDate:     domain.Date(civil.Date{Year: 2024, Month: 5, Day: day}),
	}
}

func TestInsertTransactions_SkipsConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()

	res, err := s.InsertTransactions(ctx, "u1", []domain.Transaction{tx("a", 1), tx("b", 2)})
	if err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	if res.Inserted != 2 || res.Conflicts != 0 {
		t.Errorf("first insert = %+v, want 2 inserted", res)
	}

	res, err = s.InsertTransactions(ctx, "u1", []domain.Transaction{tx("b", 2), tx("c", 3), tx("c", 3)})
	if err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	if res.Inserted != 1 || res.Conflicts != 2 {
		t.Errorf("second insert = %+v, want 1 inserted 2 conflicts", res)
	}
	if len(res.Rejected) != 2 || res.Rejected[0] != "b" || res.Rejected[1] != "c" {
		t.Errorf("Rejected = %v, want [b c]", res.Rejected)
	}

	// Other users are independent.
	res, _ = s.InsertTransactions(ctx, "u2", []domain.Transaction{tx("a", 1)})
	if res.Inserted != 1 {
		t.Errorf("other user insert = %+v, want 1 inserted", res)
	}

	corpus, _ := s.LoadCorpus(ctx, "u1")
	if corpus.Len() != 3 {
		t.Errorf("corpus Len() = %d, want 3", corpus.Len())
	}
}

func TestInsertTransactions_RequiresFingerprint(t *testing.T) {
	if _, err := New().InsertTransactions(context.Background(), "u1", []domain.Transaction{{}}); err == nil {
		t.Error("InsertTransactions() error = nil, want error for missing fingerprint")
	}
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.InsertTransactions(ctx, "u1", []domain.Transaction{tx("late", 20), tx("early", 2), tx("mid", 10)})

	all, _ := s.ListTransactions(ctx, "u1", store.ListFilter{})
	if len(all) != 3 || all[0].Fingerprint != "early" || all[2].Fingerprint != "late" {
		t.Errorf("ListTransactions() = %v, want date order", all)
	}

	from := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
	filtered, _ := s.ListTransactions(ctx, "u1", store.ListFilter{From: &from, Limit: 1})
	if len(filtered) != 1 || filtered[0].Fingerprint != "mid" {
		t.Errorf("ListTransactions(filtered) = %v, want [mid]", filtered)
	}
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.StartRun(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if s.RunStatus(id) != store.RunStatusRunning {
		t.Errorf("status = %q, want RUNNING", s.RunStatus(id))
	}
	if err := s.MarkRunSucceeded(ctx, id, 3, 1); err != nil {
		t.Fatalf("MarkRunSucceeded() error = %v", err)
	}
	if s.RunStatus(id) != store.RunStatusSucceeded {
		t.Errorf("status = %q, want SUCCESS", s.RunStatus(id))
	}
	if err := s.MarkRunSucceeded(ctx, "missing", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("MarkRunSucceeded(missing) error = %v, want ErrNotFound", err)
	}

	failed, _ := s.StartRun(ctx, "u1", 1)
	s.MarkRunFailed(ctx, failed, errors.New("insert failed"))
	if s.RunStatus(failed) != store.RunStatusFailed {
		t.Errorf("status = %q, want FAILED", s.RunStatus(failed))
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	s := New()
	legacy := tx("", 1)
	legacy.ActivityDescription = "LEGACY"
	s.Seed("u1", legacy, tx("known", 2))

	missing, err := s.ListMissingFingerprints(ctx, "u1")
	if err != nil {
		t.Fatalf("ListMissingFingerprints() error = %v", err)
	}
	if len(missing) != 1 {
		t.Fatalf("len(missing) = %d, want 1", len(missing))
	}
	for id := range missing {
		if err := s.SetFingerprint(ctx, id, "fp-legacy"); err != nil {
			t.Fatalf("SetFingerprint() error = %v", err)
		}
	}

	corpus, _ := s.LoadCorpus(ctx, "u1")
	if !corpus.Contains("fp-legacy") || !corpus.Contains("known") {
		t.Errorf("corpus = %v", corpus.Fingerprints())
	}
	if err := s.SetFingerprint(ctx, "nope", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetFingerprint(nope) error = %v, want ErrNotFound", err)
	}
}

func TestListDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.RecordDocument(ctx, store.DocumentRecord{DocumentID: "d1", UserID: "u1"})
	_ = s.RecordDocument(ctx, store.DocumentRecord{DocumentID: "d2", UserID: "u2"})
	_ = s.RecordDocument(ctx, store.DocumentRecord{DocumentID: "d3", UserID: "u1"})

	docs, err := s.ListDocuments(ctx, "u1")
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 2 || docs[0].DocumentID != "d3" || docs[1].DocumentID != "d1" {
		t.Errorf("ListDocuments() = %+v, want [d3 d1]", docs)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := tx("a", 1), tx("b", 2)
	a.DocumentID, b.DocumentID = "d1", "d2"
	_, _ = s.InsertTransactions(ctx, "u1", []domain.Transaction{a, b})
	_ = s.RecordDocument(ctx, store.DocumentRecord{DocumentID: "d1", UserID: "u1", Checksum: "sum1"})

	found, err := s.FindDocumentByChecksum(ctx, "u1", "sum1")
	if err != nil || found.DocumentID != "d1" {
		t.Fatalf("FindDocumentByChecksum() = %+v, %v", found, err)
	}
	if _, err := s.FindDocumentByChecksum(ctx, "u2", "sum1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindDocumentByChecksum(other user) error = %v, want ErrNotFound", err)
	}

	if err := s.DeleteDocument(ctx, "u1", "d1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	left, _ := s.ListTransactions(ctx, "u1", store.ListFilter{})
	if len(left) != 1 || left[0].Fingerprint != "b" {
		t.Errorf("ListTransactions() after delete = %v, want [b]", left)
	}
	corpus, _ := s.LoadCorpus(ctx, "u1")
	if corpus.Contains("a") {
		t.Error("corpus still contains fingerprint of deleted document")
	}
	if err := s.DeleteDocument(ctx, "u1", "d1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("DeleteDocument(again) error = %v, want ErrNotFound", err)
	}
}
