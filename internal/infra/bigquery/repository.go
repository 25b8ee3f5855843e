package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/store"
)

const (
	transactionsTable  = "transactions"
	documentsTable     = "documents"
	modelOutputsTable  = "model_outputs"
	ingestionRunsTable = "ingestion_runs"
)

// Repository implements the store contracts on BigQuery. It holds a shared
// client so operations do not open a new connection each time.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

var (
	_ store.Store           = (*Repository)(nil)
	_ store.RunRecorder     = (*Repository)(nil)
	_ store.Backfiller      = (*Repository)(nil)
	_ store.DocumentLister  = (*Repository)(nil)
	_ store.DocumentRemover = (*Repository)(nil)
)

// NewRepository creates a client for the configured project.
func NewRepository(ctx context.Context, cfg config.GCPConfig) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, cfg.ProjectID, cfg.Dataset), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef returns the backquoted fully qualified table name for use in SQL.
func (r *Repository) tableRef(table string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, table)
}

func (r *Repository) table(name string) *bigquery.Table {
	return r.client.DatasetInProject(r.projectID, r.datasetID).Table(name)
}

// runDML runs a statement and waits for it to finish.
func (r *Repository) runDML(ctx context.Context, op, sql string, params []bigquery.QueryParameter) error {
	q := r.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
