// Package ingest wires extraction, the pipeline core and storage into one
// ingestion call per upload.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/gcs"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/notionsync"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

// Exporter mirrors inserted transactions to an external system.
type Exporter interface {
	Export(ctx context.Context, userID string, txs []domain.Transaction) (notionsync.ExportResult, error)
}

// DocumentFinder looks up documents that were already ingested.
type DocumentFinder interface {
	FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.DocumentRecord, error)
}

// Report summarises one ingestion call.
type Report struct {
	RunID     string
	Inserted  int
	Conflicts int
	// DuplicateCount counts records dropped by the pipeline's deduplication.
	DuplicateCount int
	Transactions   []domain.Transaction
	Documents      []pipeline.DocumentReport
	Exported       *notionsync.ExportResult
	// SkippedDocuments names uploads whose checksum was already ingested.
	SkippedDocuments []string
}

// Service runs ingestion for a user.
type Service struct {
	extractor extraction.Extractor
	store     store.Store
	runs      store.RunRecorder
	exporter  Exporter
	objects   gcs.ObjectStore
	bucket    string
	modelName string
	opts      pipeline.Options
	seen      DocumentFinder
}

// Option configures a Service.
type Option func(*Service)

// WithRunRecorder records runs and documents.
func WithRunRecorder(r store.RunRecorder) Option {
	return func(s *Service) { s.runs = r }
}

// WithExporter exports inserted transactions after each run.
func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

// WithArchive uploads documents that have no SourceURI to bucket before extraction.
func WithArchive(objects gcs.ObjectStore, bucket string) Option {
	return func(s *Service) {
		s.objects = objects
		s.bucket = bucket
	}
}

// WithSkipSeenDocuments drops uploads whose checksum finder already knows.
func WithSkipSeenDocuments(finder DocumentFinder) Option {
	return func(s *Service) { s.seen = finder }
}

// WithModelName is stored alongside raw responses.
func WithModelName(name string) Option {
	return func(s *Service) { s.modelName = name }
}

// WithPipelineOptions overrides the default normalization and dedup settings.
func WithPipelineOptions(opts pipeline.Options) Option {
	return func(s *Service) { s.opts = opts }
}

// NewService creates a Service.
func NewService(extractor extraction.Extractor, st store.Store, opts ...Option) *Service {
	s := &Service{extractor: extractor, store: st, opts: pipeline.DefaultOptions()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest extracts every document, runs the pipeline against the user's
// corpus and inserts the resulting batch once. Extraction failures are
// reported per document; storage failures fail the run.
func (s *Service) Ingest(ctx context.Context, userID string, docs []extraction.Document) (*Report, error) {
	ctx, log := logger.ForUser(ctx, userID)
	report := &Report{}

	docs, report.SkippedDocuments = s.dropSeen(ctx, userID, docs)

	if s.runs != nil {
		runID, err := s.runs.StartRun(ctx, userID, len(docs))
		if err != nil {
			return nil, fmt.Errorf("Ingest: starting run: %w", err)
		}
		report.RunID = runID
		ctx = store.WithRunID(ctx, runID)
		log = log.With().Str("run_id", runID).Logger()
		ctx = logger.WithContext(ctx, log)
	}

	log.Info().Int("documents", len(docs)).Msg("Starting ingestion")

	corpus, err := s.store.LoadCorpus(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, report.RunID, fmt.Errorf("Ingest: loading corpus: %w", err))
	}

	inputs := make([]pipeline.Input, len(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		s.archive(ctx, userID, &docs[i])
		inputs[i] = s.extract(ctx, docs[i])
	}

	res := pipeline.Run(ctx, inputs, corpus, s.opts)
	report.Documents = res.Documents
	report.DuplicateCount = res.DuplicateCount
	report.Transactions = res.Batch

	ins, err := s.store.InsertTransactions(ctx, userID, res.Batch)
	if err != nil {
		return nil, s.fail(ctx, report.RunID, fmt.Errorf("Ingest: inserting transactions: %w", err))
	}
	report.Inserted = ins.Inserted
	report.Conflicts = ins.Conflicts

	s.recordDocuments(ctx, userID, report.RunID, docs, inputs, res.Documents)

	if s.runs != nil {
		if err := s.runs.MarkRunSucceeded(ctx, report.RunID, ins.Inserted, res.DuplicateCount+ins.Conflicts); err != nil {
			log.Warn().Err(err).Msg("Failed to mark ingestion run as succeeded")
		}
	}

	inserted := withoutRejected(res.Batch, ins.Rejected)
	if s.exporter != nil && len(inserted) > 0 {
		exported, err := s.exporter.Export(ctx, userID, inserted)
		if err != nil {
			log.Warn().Err(err).Msg("Export failed")
		} else {
			report.Exported = &exported
		}
	}

	log.Info().
		Int("inserted", report.Inserted).
		Int("conflicts", report.Conflicts).
		Int("duplicates", report.DuplicateCount).
		Int("failed_documents", res.Failed()).
		Msg("Ingestion completed")

	return report, nil
}

// withoutRejected drops the rows the store refused as conflicts.
func withoutRejected(batch []domain.Transaction, rejected []string) []domain.Transaction {
	if len(rejected) == 0 {
		return batch
	}
	skip := make(map[string]struct{}, len(rejected))
	for _, fp := range rejected {
		skip[fp] = struct{}{}
	}
	out := make([]domain.Transaction, 0, len(batch))
	for _, tx := range batch {
		if _, ok := skip[tx.Fingerprint]; !ok {
			out = append(out, tx)
		}
	}
	return out
}

// dropSeen filters out documents ingested before. Lookup errors keep the
// document; fingerprint dedup still applies to its records.
func (s *Service) dropSeen(ctx context.Context, userID string, docs []extraction.Document) ([]extraction.Document, []string) {
	if s.seen == nil {
		return docs, nil
	}
	log := logger.FromContext(ctx)
	var kept []extraction.Document
	var skipped []string
	for _, doc := range docs {
		prev, err := s.seen.FindDocumentByChecksum(ctx, userID, doc.Checksum())
		switch {
		case err == nil:
			log.Info().
				Str("document", doc.Name).
				Str("previous_document_id", prev.DocumentID).
				Msg("Skipping document already ingested")
			skipped = append(skipped, doc.Name)
			continue
		case !errors.Is(err, store.ErrNotFound):
			log.Warn().Err(err).Str("document", doc.Name).Msg("Checksum lookup failed")
		}
		kept = append(kept, doc)
	}
	return kept, skipped
}

func (s *Service) fail(ctx context.Context, runID string, err error) error {
	if s.runs != nil && runID != "" {
		s.runs.MarkRunFailed(ctx, runID, err)
	}
	return err
}

// extract calls the model once. Failures are carried on the input, never retried.
func (s *Service) extract(ctx context.Context, doc extraction.Document) pipeline.Input {
	in := pipeline.Input{DocumentID: doc.ID, Name: doc.Name}
	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("document_id", doc.ID).
			Str("document", doc.Name).
			Msg("Extraction failed")
		in.Err = err
		return in
	}
	in.RawText = text
	return in
}

// archive uploads doc when an archive bucket is configured. Failure leaves
// SourceURI empty and does not stop ingestion.
func (s *Service) archive(ctx context.Context, userID string, doc *extraction.Document) {
	if s.objects == nil || s.bucket == "" || doc.SourceURI != "" {
		return
	}
	object := gcs.ArchiveObjectName(userID, doc.Checksum(), doc.Name)
	uri, err := s.objects.Upload(ctx, s.bucket, object, bytes.NewReader(doc.Data), doc.MIMEType)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("document", doc.Name).Msg("Failed to archive document")
		return
	}
	doc.SourceURI = uri
}

func (s *Service) recordDocuments(ctx context.Context, userID, runID string, docs []extraction.Document, inputs []pipeline.Input, reports []pipeline.DocumentReport) {
	if s.runs == nil {
		return
	}
	log := logger.FromContext(ctx)
	for i, doc := range docs {
		rec := store.DocumentRecord{
			DocumentID:  doc.ID,
			UserID:      userID,
			RunID:       runID,
			Name:        doc.Name,
			MIMEType:    doc.MIMEType,
			Checksum:    doc.Checksum(),
			SourceURI:   doc.SourceURI,
			ModelName:   s.modelName,
			RawResponse: inputs[i].RawText,
			CreatedAt:   time.Now().UTC(),
		}
		if i < len(reports) {
			rec.Records = reports[i].Records
			if reports[i].Err != nil {
				rec.Error = reports[i].Err.Error()
			}
		}
		if err := s.runs.RecordDocument(ctx, rec); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to record document")
		}
	}
}
