// Package handlers implements the HTTP endpoints.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/api/middleware"
	"github.com/dvloznov/statement-insights/internal/extraction"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/jobs"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/store"
)

const (
	// DefaultMaxUploadBytes bounds a multipart ingest request.
	DefaultMaxUploadBytes = 32 << 20

	uploadField = "files"
	dateLayout  = "2006-01-02"
)

// IngestHandler handles statement uploads.
type IngestHandler struct {
	svc       *ingest.Service
	maxBytes  int64
	publisher jobs.Publisher
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(svc *ingest.Service, maxBytes int64) *IngestHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &IngestHandler{svc: svc, maxBytes: maxBytes}
}

// WithPublisher enables ?async=true uploads, which are queued on p and
// answered with 202 and the pending job.
func (h *IngestHandler) WithPublisher(p jobs.Publisher) *IngestHandler {
	h.publisher = p
	return h
}

type documentResult struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
}

type ingestResponse struct {
	RunID          string           `json:"run_id,omitempty"`
	Inserted       int              `json:"inserted"`
	Conflicts      int              `json:"conflicts"`
	DuplicateCount int              `json:"duplicate_count"`
	Documents      []documentResult `json:"documents"`
	Skipped        []string         `json:"skipped_documents,omitempty"`
}

// Ingest handles POST /api/ingest with one or more files in the "files" field.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File[uploadField]
	}
	if len(files) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one file is required in field "+uploadField)
		return
	}

	docs := make([]extraction.Document, 0, len(files))
	for _, fh := range files {
		data, err := readUpload(fh)
		if err != nil {
			log.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to read uploaded file")
			middleware.WriteError(w, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		docs = append(docs, ingest.NewDocument(fh.Filename, data, ""))
	}

	userID := middleware.UserIDFromContext(ctx)

	if r.URL.Query().Get("async") == "true" {
		if h.publisher == nil {
			middleware.WriteError(w, http.StatusNotImplemented, "Asynchronous ingestion is not enabled")
			return
		}
		job, err := h.publisher.Publish(ctx, userID, docs)
		if err != nil {
			log.Error().Err(err).Msg("Failed to queue ingestion job")
			middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue ingestion job")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, job)
		return
	}

	report, err := h.svc.Ingest(ctx, userID, docs)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Ingestion failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toIngestResponse(report))
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func toIngestResponse(report *ingest.Report) ingestResponse {
	resp := ingestResponse{
		RunID:          report.RunID,
		Inserted:       report.Inserted,
		Conflicts:      report.Conflicts,
		DuplicateCount: report.DuplicateCount,
		Documents:      make([]documentResult, 0, len(report.Documents)),
		Skipped:        report.SkippedDocuments,
	}
	for _, d := range report.Documents {
		resp.Documents = append(resp.Documents, toDocumentResult(d))
	}
	return resp
}

func toDocumentResult(d pipeline.DocumentReport) documentResult {
	res := documentResult{DocumentID: d.DocumentID, Name: d.Name, Records: d.Records}
	if d.Err != nil {
		res.Error = d.Err.Error()
	}
	return res
}

// TransactionsHandler serves stored transactions and the reports built on them.
type TransactionsHandler struct {
	store   store.Store
	advisor extraction.Advisor
}

// NewTransactionsHandler creates a new transactions handler. advisor may be nil.
func NewTransactionsHandler(st store.Store, advisor extraction.Advisor) *TransactionsHandler {
	return &TransactionsHandler{store: st, advisor: advisor}
}

// ListTransactions handles GET /api/transactions?start_date=&end_date=&limit=
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	filter, err := parseListFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.store.ListTransactions(ctx, middleware.UserIDFromContext(ctx), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	var filter store.ListFilter
	query := r.URL.Query()

	if s := query.Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return filter, errors.New("Invalid start_date format (use YYYY-MM-DD)")
		}
		filter.From = &t
	}
	if s := query.Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return filter, errors.New("Invalid end_date format (use YYYY-MM-DD)")
		}
		filter.To = &t
	}
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, errors.New("Invalid limit")
		}
		filter.Limit = n
	}
	return filter, nil
}

// Summary handles GET /api/summary?year=2024&month=3,April
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	filter, err := analytics.ParseFilter(r.URL.Query()["year"], r.URL.Query()["month"])
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.store.ListTransactions(ctx, middleware.UserIDFromContext(ctx), store.ListFilter{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to load transactions for summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"summary":   analytics.Summarize(txs, filter),
		"available": analytics.Options(txs),
	})
}

// Recommendations handles POST /api/recommendations.
func (h *TransactionsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.advisor == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Recommendations are not configured")
		return
	}

	txs, err := h.store.ListTransactions(ctx, middleware.UserIDFromContext(ctx), store.ListFilter{})
	if err != nil {
		log.Error().Err(err).Msg("Failed to load transactions for recommendations")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate recommendations")
		return
	}
	if len(txs) == 0 {
		middleware.WriteError(w, http.StatusNotFound, "No transactions to analyse")
		return
	}

	text, err := h.advisor.Recommend(ctx, txs)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate recommendations")
		middleware.WriteError(w, http.StatusBadGateway, "Failed to generate recommendations")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": text,
		"transactions":    len(txs),
	})
}

// DocumentsHandler lists and deletes ingested documents.
type DocumentsHandler struct {
	lister  store.DocumentLister
	remover store.DocumentRemover
}

// NewDocumentsHandler creates a new documents handler. remover may be nil,
// in which case deletes answer 501.
func NewDocumentsHandler(lister store.DocumentLister, remover store.DocumentRemover) *DocumentsHandler {
	return &DocumentsHandler{lister: lister, remover: remover}
}

type documentView struct {
	DocumentID string    `json:"document_id"`
	RunID      string    `json:"run_id,omitempty"`
	Name       string    `json:"name"`
	MIMEType   string    `json:"mime_type,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	SourceURI  string    `json:"source_uri,omitempty"`
	Records    int       `json:"records"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListDocuments handles GET /api/documents
func (h *DocumentsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	records, err := h.lister.ListDocuments(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		log.Error().Err(err).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	docs := make([]documentView, 0, len(records))
	for _, rec := range records {
		docs = append(docs, documentView{
			DocumentID: rec.DocumentID,
			RunID:      rec.RunID,
			Name:       rec.Name,
			MIMEType:   rec.MIMEType,
			Checksum:   rec.Checksum,
			SourceURI:  rec.SourceURI,
			Records:    rec.Records,
			Error:      rec.Error,
			CreatedAt:  rec.CreatedAt,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// DeleteDocument handles DELETE /api/documents/{id}
func (h *DocumentsHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.remover == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Document deletion is not supported by this backend")
		return
	}

	documentID := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if documentID == "" || strings.Contains(documentID, "/") {
		middleware.WriteError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	err := h.remover.DeleteDocument(ctx, middleware.UserIDFromContext(ctx), documentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Document not found")
		return
	case err != nil:
		log.Error().Err(err).Str("document_id", documentID).Msg("Failed to delete document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"status":      "deleted",
	})
}

// JobsHandler reports on asynchronous ingestion jobs.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// ListJobs handles GET /api/jobs?status=&limit=
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	filter := jobs.JobFilter{
		UserID: middleware.UserIDFromContext(ctx),
		Status: jobs.JobStatus(r.URL.Query().Get("status")),
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}

	list, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.IngestJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
		return
	}

	job, err := h.store.GetJob(ctx, jobID)
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	case err != nil:
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	// Jobs of other users are reported as missing.
	if job.UserID != middleware.UserIDFromContext(ctx) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
