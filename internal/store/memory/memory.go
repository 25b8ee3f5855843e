// Package memory is an in-process store used by tests and the memory backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

type row struct {
	id     string
	userID string
	tx     domain.Transaction
}

type run struct {
	userID     string
	status     string
	documents  int
	inserted   int
	duplicates int
	errMsg     string
}

// Store keeps everything in maps guarded by a mutex.
type Store struct {
	mu        sync.RWMutex
	rows      []row
	keys      map[string]map[string]struct{}
	runs      map[string]*run
	documents []store.DocumentRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		keys: make(map[string]map[string]struct{}),
		runs: make(map[string]*run),
	}
}

var (
	_ store.Store           = (*Store)(nil)
	_ store.RunRecorder     = (*Store)(nil)
	_ store.Backfiller      = (*Store)(nil)
	_ store.DocumentLister  = (*Store)(nil)
	_ store.DocumentRemover = (*Store)(nil)
)

func (s *Store) LoadCorpus(ctx context.Context, userID string) (*dedup.Corpus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fps := make([]string, 0, len(s.keys[userID]))
	for fp := range s.keys[userID] {
		fps = append(fps, fp)
	}
	return dedup.NewCorpus(fps...), nil
}

// InsertTransactions enforces uniqueness of (user_id, fingerprint) per row.
func (s *Store) InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) (store.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.InsertResult
	keys, ok := s.keys[userID]
	if !ok {
		keys = make(map[string]struct{})
		s.keys[userID] = keys
	}
	for _, tx := range txs {
		if tx.Fingerprint == "" {
			return res, fmt.Errorf("InsertTransactions: transaction %q has no fingerprint", tx.ActivityDescription)
		}
		if _, dup := keys[tx.Fingerprint]; dup {
			res.Conflicts++
			res.Rejected = append(res.Rejected, tx.Fingerprint)
			continue
		}
		keys[tx.Fingerprint] = struct{}{}
		s.rows = append(s.rows, row{id: uuid.NewString(), userID: userID, tx: tx})
		res.Inserted++
	}
	return res, nil
}

// Seed stores txs as-is, including rows without a fingerprint. It is meant
// for loading legacy data in tests.
func (s *Store) Seed(userID string, txs ...domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.rows = append(s.rows, row{id: uuid.NewString(), userID: userID, tx: tx})
		if tx.Fingerprint != "" {
			if s.keys[userID] == nil {
				s.keys[userID] = make(map[string]struct{})
			}
			s.keys[userID][tx.Fingerprint] = struct{}{}
		}
	}
}

func (s *Store) ListTransactions(ctx context.Context, userID string, filter store.ListFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for _, r := range s.rows {
		if r.userID != userID || !inRange(r.tx, filter) {
			continue
		}
		out = append(out, r.tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].TransactionDate, out[j].TransactionDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.Before(*b)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func inRange(tx domain.Transaction, f store.ListFilter) bool {
	if f.From == nil && f.To == nil {
		return true
	}
	if tx.TransactionDate == nil {
		return false
	}
	t := tx.TransactionDate.In(time.UTC)
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && t.After(*f.To) {
		return false
	}
	return true
}

func (s *Store) StartRun(ctx context.Context, userID string, documents int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.runs[id] = &run{userID: userID, status: store.RunStatusRunning, documents: documents}
	return id, nil
}

func (s *Store) RecordDocument(ctx context.Context, doc store.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = append(s.documents, doc)
	return nil
}

func (s *Store) MarkRunSucceeded(ctx context.Context, runID string, inserted, duplicates int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("MarkRunSucceeded: run %s: %w", runID, store.ErrNotFound)
	}
	r.status = store.RunStatusSucceeded
	r.inserted = inserted
	r.duplicates = duplicates
	return nil
}

func (s *Store) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[runID]; ok {
		r.status = store.RunStatusFailed
		if runErr != nil {
			r.errMsg = runErr.Error()
		}
	}
}

// RunStatus returns the status of runID, or "" if unknown.
func (s *Store) RunStatus(runID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.runs[runID]; ok {
		return r.status
	}
	return ""
}

func (s *Store) ListDocuments(ctx context.Context, userID string) ([]store.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.DocumentRecord
	for i := len(s.documents) - 1; i >= 0; i-- {
		if s.documents[i].UserID == userID {
			out = append(out, s.documents[i])
		}
	}
	return out, nil
}

func (s *Store) ListMissingFingerprints(ctx context.Context, userID string) (map[string]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Transaction)
	for _, r := range s.rows {
		if r.userID == userID && r.tx.Fingerprint == "" {
			out[r.id] = r.tx
		}
	}
	return out, nil
}

func (s *Store) SetFingerprint(ctx context.Context, rowID, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].id != rowID {
			continue
		}
		s.rows[i].tx.Fingerprint = fp
		userID := s.rows[i].userID
		if s.keys[userID] == nil {
			s.keys[userID] = make(map[string]struct{})
		}
		s.keys[userID][fp] = struct{}{}
		return nil
	}
	return fmt.Errorf("SetFingerprint: row %s: %w", rowID, store.ErrNotFound)
}

func (s *Store) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.documents) - 1; i >= 0; i-- {
		d := s.documents[i]
		if d.UserID == userID && d.Checksum == checksum {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("FindDocumentByChecksum: %s: %w", checksum, store.ErrNotFound)
}

// DeleteDocument drops the document and its rows, releasing their fingerprints.
func (s *Store) DeleteDocument(ctx context.Context, userID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	docs := s.documents[:0]
	for _, d := range s.documents {
		if d.UserID == userID && d.DocumentID == documentID {
			found = true
			continue
		}
		docs = append(docs, d)
	}
	s.documents = docs

	rows := s.rows[:0]
	for _, r := range s.rows {
		if r.userID == userID && r.tx.DocumentID == documentID {
			found = true
			if r.tx.Fingerprint != "" {
				delete(s.keys[userID], r.tx.Fingerprint)
			}
			continue
		}
		rows = append(rows, r)
	}
	s.rows = rows

	if !found {
		return fmt.Errorf("DeleteDocument: document %s: %w", documentID, store.ErrNotFound)
	}
	return nil
}
