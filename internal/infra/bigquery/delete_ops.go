package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
)

// DeleteDocument removes a document together with its model output and the
// transactions extracted from it. Rows still in the streaming buffer cannot
// be deleted and surface as an error from BigQuery.
func (r *Repository) DeleteDocument(ctx context.Context, userID, documentID string) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Str("document_id", documentID).
		Msg("Deleting document")

	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "document_id", Value: documentID},
	}

	if err := r.runDML(ctx, "delete transactions", fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND document_id = @document_id
	`, r.tableRef(transactionsTable)), params); err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}

	if err := r.runDML(ctx, "delete model outputs", fmt.Sprintf(`
		DELETE FROM %s
		WHERE document_id = @document_id
	`, r.tableRef(modelOutputsTable)), params[1:]); err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}

	if err := r.runDML(ctx, "delete document", fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND document_id = @document_id
	`, r.tableRef(documentsTable)), params); err != nil {
		return fmt.Errorf("DeleteDocument: %w", err)
	}

	log.Info().Str("document_id", documentID).Msg("Document deleted")
	return nil
}
