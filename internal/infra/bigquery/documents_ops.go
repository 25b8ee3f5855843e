package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"google.golang.org/api/iterator"
)

const documentColumns = `
	document_id, user_id, COALESCE(run_id, '') AS run_id,
	COALESCE(original_filename, '') AS original_filename,
	COALESCE(file_mime_type, '') AS file_mime_type,
	COALESCE(checksum_sha256, '') AS checksum_sha256,
	COALESCE(source_uri, '') AS source_uri,
	record_count, COALESCE(error_message, '') AS error_message, upload_ts`

// RecordDocument stores the document row and, when present, the raw model
// response alongside it.
func (r *Repository) RecordDocument(ctx context.Context, doc store.DocumentRecord) error {
	now := time.Now().UTC()
	if err := r.table(documentsTable).Inserter().Put(ctx, toDocumentRow(doc, now)); err != nil {
		return fmt.Errorf("RecordDocument: inserting row: %w", err)
	}
	if doc.RawResponse == "" {
		return nil
	}
	if err := r.insertModelOutput(ctx, &ModelOutputRow{
		OutputID:   doc.DocumentID,
		DocumentID: doc.DocumentID,
		RunID:      doc.RunID,
		ModelName:  doc.ModelName,
		RawJSON:    doc.RawResponse,
		CreatedTS:  now,
	}); err != nil {
		return fmt.Errorf("RecordDocument: %w", err)
	}
	return nil
}

// ListDocuments returns the user's documents, newest first.
func (r *Repository) ListDocuments(ctx context.Context, userID string) ([]store.DocumentRecord, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY upload_ts DESC
	`, documentColumns, r.tableRef(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	rows, err := readDocumentRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	out := make([]store.DocumentRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// FindDocumentByChecksum returns the most recent document with the given
// SHA-256 checksum, or store.ErrNotFound.
func (r *Repository) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.DocumentRecord, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, documentColumns, r.tableRef(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "checksum", Value: checksum},
	}

	rows, err := readDocumentRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("FindDocumentByChecksum: %s: %w", checksum, store.ErrNotFound)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("checksum", checksum).
		Str("document_id", rows[0].DocumentID).
		Msg("Found document with matching checksum")

	rec := rows[0].toRecord()
	return &rec, nil
}

func readDocumentRows(ctx context.Context, q *bigquery.Query) ([]*DocumentRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var rows []*DocumentRow
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}
