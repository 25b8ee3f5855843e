package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/store"
)

// DocumentRow is one row of the documents table.
type DocumentRow struct {
	DocumentID string `bigquery:"document_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	RunID      string `bigquery:"run_id"`      // NULLABLE

	OriginalFilename string `bigquery:"original_filename"` // NULLABLE
	FileMimeType     string `bigquery:"file_mime_type"`    // NULLABLE
	ChecksumSHA256   string `bigquery:"checksum_sha256"`   // NULLABLE
	SourceURI        string `bigquery:"source_uri"`        // NULLABLE

	RecordCount  int64  `bigquery:"record_count"`  // REQUIRED
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	UploadTS time.Time `bigquery:"upload_ts"` // REQUIRED
}

// ModelOutputRow keeps the raw extraction response of one document.
type ModelOutputRow struct {
	OutputID   string    `bigquery:"output_id"`   // REQUIRED
	DocumentID string    `bigquery:"document_id"` // REQUIRED
	RunID      string    `bigquery:"run_id"`      // NULLABLE
	ModelName  string    `bigquery:"model_name"`  // NULLABLE
	RawJSON    string    `bigquery:"raw_json"`    // NULLABLE
	CreatedTS  time.Time `bigquery:"created_ts"`  // REQUIRED
}

// IngestionRunRow tracks one ingest invocation.
type IngestionRunRow struct {
	RunID     string `bigquery:"run_id"`  // REQUIRED
	UserID    string `bigquery:"user_id"` // REQUIRED
	Status    string `bigquery:"status"`  // REQUIRED
	Documents int64  `bigquery:"documents"`

	Inserted   bigquery.NullInt64 `bigquery:"inserted"`   // NULLABLE
	Duplicates bigquery.NullInt64 `bigquery:"duplicates"` // NULLABLE

	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE
}

func toDocumentRow(doc store.DocumentRecord, now time.Time) *DocumentRow {
	uploaded := doc.CreatedAt
	if uploaded.IsZero() {
		uploaded = now
	}
	return &DocumentRow{
		DocumentID:       doc.DocumentID,
		UserID:           doc.UserID,
		RunID:            doc.RunID,
		OriginalFilename: doc.Name,
		FileMimeType:     doc.MIMEType,
		ChecksumSHA256:   doc.Checksum,
		SourceURI:        doc.SourceURI,
		RecordCount:      int64(doc.Records),
		ErrorMessage:     truncateError(doc.Error),
		UploadTS:         uploaded,
	}
}

func (row *DocumentRow) toRecord() store.DocumentRecord {
	return store.DocumentRecord{
		DocumentID: row.DocumentID,
		UserID:     row.UserID,
		RunID:      row.RunID,
		Name:       row.OriginalFilename,
		MIMEType:   row.FileMimeType,
		Checksum:   row.ChecksumSHA256,
		SourceURI:  row.SourceURI,
		Records:    int(row.RecordCount),
		Error:      row.ErrorMessage,
		CreatedAt:  row.UploadTS,
	}
}

// maxErrorLength bounds error messages stored in STRING columns.
const maxErrorLength = 2000

func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	return msg[:maxErrorLength]
}
