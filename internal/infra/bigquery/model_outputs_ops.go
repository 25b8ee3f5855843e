package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// insertModelOutput uses DML INSERT so the row can be deleted right away,
// which the streaming buffer would not allow.
func (r *Repository) insertModelOutput(ctx context.Context, row *ModelOutputRow) error {
	return r.runDML(ctx, "insertModelOutput", fmt.Sprintf(`
		INSERT INTO %s (output_id, document_id, run_id, model_name, raw_json, created_ts)
		VALUES (@output_id, @document_id, @run_id, @model_name, @raw_json, @created_ts)
	`, r.tableRef(modelOutputsTable)), []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "document_id", Value: row.DocumentID},
		{Name: "run_id", Value: row.RunID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_json", Value: row.RawJSON},
		{Name: "created_ts", Value: row.CreatedTS},
	})
}
