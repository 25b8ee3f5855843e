// Package dedup separates new transactions from ones the user already has.
package dedup

import (
	"sort"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/fingerprint"
	"github.com/dvloznov/statement-insights/internal/normalize"
)

// Corpus is the set of fingerprints already stored for one user.
type Corpus struct {
	set map[string]struct{}
}

// NewCorpus returns a corpus holding fps.
func NewCorpus(fps ...string) *Corpus {
	c := &Corpus{set: make(map[string]struct{}, len(fps))}
	for _, fp := range fps {
		c.set[fp] = struct{}{}
	}
	return c
}

// CorpusFromTransactions builds a corpus from stored transactions. Rows that
// lack a persisted fingerprint are re-normalized and hashed, which yields the
// same value as at ingestion because normalization is idempotent.
func CorpusFromTransactions(txs []domain.Transaction, n *normalize.Normalizer) *Corpus {
	c := NewCorpus()
	for _, tx := range txs {
		fp := tx.Fingerprint
		if fp == "" {
			fp = fingerprint.Compute(n.NormalizeOne(normalize.Denormalize(tx)))
		}
		c.set[fp] = struct{}{}
	}
	return c
}

// Contains reports whether fp is in the corpus. A nil corpus is empty.
func (c *Corpus) Contains(fp string) bool {
	if c == nil {
		return false
	}
	_, ok := c.set[fp]
	return ok
}

// Len returns the number of fingerprints.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.set)
}

// Fingerprints returns the fingerprints in sorted order.
func (c *Corpus) Fingerprints() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.set))
	for fp := range c.set {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// Engine partitions a batch against a corpus.
type Engine struct {
	// WithinBatch also skips records whose fingerprint already appeared
	// earlier in the same batch.
	WithinBatch bool
}

// Result is the outcome of Partition.
type Result struct {
	ToInsert     []domain.Transaction
	Skipped      []domain.Transaction
	SkippedCount int
}

// Partition splits batch into records to insert and records to skip. Each
// record must already carry its fingerprint. The corpus is only read.
func (e Engine) Partition(batch []domain.Transaction, corpus *Corpus) Result {
	res := Result{ToInsert: make([]domain.Transaction, 0, len(batch))}
	seen := make(map[string]struct{}, len(batch))

	for _, tx := range batch {
		_, dup := seen[tx.Fingerprint]
		if corpus.Contains(tx.Fingerprint) || (e.WithinBatch && dup) {
			res.Skipped = append(res.Skipped, tx)
			continue
		}
		seen[tx.Fingerprint] = struct{}{}
		res.ToInsert = append(res.ToInsert, tx)
	}

	res.SkippedCount = len(res.Skipped)
	return res
}
