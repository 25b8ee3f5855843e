// Package pipeline turns extraction responses into an insert-ready batch.
// Run is a pure function of its inputs and the user's corpus: it performs no
// I/O and keeps no state between calls.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/normalize"
)

// Input is the extraction outcome for one document.
type Input struct {
	DocumentID string
	Name       string
	RawText    string
	// Err is set when the extraction call itself failed.
	Err error
}

// Options configures a run.
type Options struct {
	Normalizer *normalize.Normalizer
	Dedup      dedup.Engine
}

// DefaultOptions uses the current year for year-less dates and skips within-batch duplicates.
func DefaultOptions() Options {
	return Options{
		Normalizer: normalize.New(nil),
		Dedup:      dedup.Engine{WithinBatch: true},
	}
}

// DocumentError reports a document that contributed no records.
type DocumentError struct {
	DocumentID string
	Name       string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s (%s): %v", e.Name, e.DocumentID, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// DocumentReport describes what one document contributed.
type DocumentReport struct {
	DocumentID  string
	Name        string
	Records     int
	Diagnostics extraction.Diagnostics
	Err         error
}

// Result is the output of Run.
type Result struct {
	// Batch holds the records to insert, in document then date order.
	Batch          []domain.Transaction
	Skipped        []domain.Transaction
	DuplicateCount int
	Documents      []DocumentReport
}

// Failed returns the number of documents that contributed no records because of an error.
func (r *Result) Failed() int {
	n := 0
	for _, d := range r.Documents {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Run processes every input independently, concatenates the per-document
// records and removes records already present in corpus. A failing document
// is reported and contributes nothing; it never aborts the run.
func Run(ctx context.Context, inputs []Input, corpus *dedup.Corpus, opts Options) *Result {
	log := logger.FromContext(ctx)
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil)
	}

	res := &Result{Documents: make([]DocumentReport, 0, len(inputs))}
	p := NewDocumentPipeline(opts.Normalizer)

	var combined []domain.Transaction
	for _, in := range inputs {
		state := &PipelineState{Input: in}
		report := DocumentReport{DocumentID: in.DocumentID, Name: in.Name}

		if err := p.Execute(ctx, state); err != nil {
			report.Err = &DocumentError{DocumentID: in.DocumentID, Name: in.Name, Err: err}
			log.Warn().
				Err(err).
				Str("document_id", in.DocumentID).
				Str("document", in.Name).
				Msg("Document skipped")
			res.Documents = append(res.Documents, report)
			continue
		}

		report.Records = len(state.Transactions)
		report.Diagnostics = state.Diagnostics
		if len(state.Diagnostics.UnknownFields) > 0 || state.Diagnostics.SkippedElements > 0 {
			log.Debug().
				Str("document_id", in.DocumentID).
				Interface("unknown_fields", state.Diagnostics.UnknownFields).
				Int("skipped_elements", state.Diagnostics.SkippedElements).
				Msg("Decoder dropped content")
		}
		res.Documents = append(res.Documents, report)
		combined = append(combined, state.Transactions...)
	}

	partition := opts.Dedup.Partition(combined, corpus)
	res.Batch = partition.ToInsert
	res.Skipped = partition.Skipped
	res.DuplicateCount = partition.SkippedCount

	log.Info().
		Int("documents", len(inputs)).
		Int("failed_documents", res.Failed()).
		Int("records", len(combined)).
		Int("to_insert", len(res.Batch)).
		Int("duplicates", res.DuplicateCount).
		Msg("Pipeline run completed")

	return res
}
