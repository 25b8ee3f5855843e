// Package store defines the persistence contracts used by ingestion and reporting.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/domain"
)

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID attaches an ingestion run id so stores can tag inserted rows.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run id attached by WithRunID, or "".
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusSucceeded = "SUCCESS"
	RunStatusFailed    = "FAILED"
)

// InsertResult reports a best-effort batch insert.
type InsertResult struct {
	Inserted int
	// Conflicts counts rows rejected because (user_id, fingerprint) already existed.
	Conflicts int
	// Rejected lists the fingerprints of those rows.
	Rejected []string
}

// ListFilter narrows ListTransactions. Zero values mean no filter.
type ListFilter struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// Store persists transactions per user.
type Store interface {
	// LoadCorpus returns the fingerprints already stored for userID.
	LoadCorpus(ctx context.Context, userID string) (*dedup.Corpus, error)
	// InsertTransactions appends txs, skipping rows whose fingerprint the user already has.
	InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) (InsertResult, error)
	// ListTransactions returns the user's transactions ordered by transaction date.
	ListTransactions(ctx context.Context, userID string, filter ListFilter) ([]domain.Transaction, error)
}

// DocumentRecord describes one ingested document.
type DocumentRecord struct {
	DocumentID string
	UserID     string
	RunID      string
	Name       string
	MIMEType   string
	Checksum   string
	SourceURI  string
	Records    int
	Error      string
	// ModelName and RawResponse keep the extraction output for auditing.
	ModelName   string
	RawResponse string
	CreatedAt   time.Time
}

// RunRecorder tracks ingestion runs.
type RunRecorder interface {
	StartRun(ctx context.Context, userID string, documents int) (string, error)
	RecordDocument(ctx context.Context, doc DocumentRecord) error
	MarkRunSucceeded(ctx context.Context, runID string, inserted, duplicates int) error
	// MarkRunFailed is best effort; failures are logged.
	MarkRunFailed(ctx context.Context, runID string, runErr error)
}

// DocumentLister lists a user's ingested documents, newest first.
type DocumentLister interface {
	ListDocuments(ctx context.Context, userID string) ([]DocumentRecord, error)
}

// Backfiller supports populating fingerprints on rows stored without one.
type Backfiller interface {
	// ListMissingFingerprints returns stored rows with an empty fingerprint, keyed by row id.
	ListMissingFingerprints(ctx context.Context, userID string) (map[string]domain.Transaction, error)
	SetFingerprint(ctx context.Context, rowID, fp string) error
}

// DocumentRemover looks up and deletes previously ingested documents.
type DocumentRemover interface {
	// FindDocumentByChecksum returns the newest document with checksum, or ErrNotFound.
	FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*DocumentRecord, error)
	// DeleteDocument removes the document and the transactions extracted from it.
	DeleteDocument(ctx context.Context, userID, documentID string) error
}
