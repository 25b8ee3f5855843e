package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
)

// StartRun inserts a RUNNING row with DML so it can be updated immediately.
func (r *Repository) StartRun(ctx context.Context, userID string, documents int) (string, error) {
	row := &IngestionRunRow{
		RunID:     uuid.NewString(),
		UserID:    userID,
		Status:    store.RunStatusRunning,
		Documents: int64(documents),
		StartedTS: time.Now().UTC(),
	}
	err := r.runDML(ctx, "StartRun", fmt.Sprintf(`
		INSERT INTO %s (run_id, user_id, status, documents, started_ts)
		VALUES (@run_id, @user_id, @status, @documents, @started_ts)
	`, r.tableRef(ingestionRunsTable)), []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "user_id", Value: row.UserID},
		{Name: "status", Value: row.Status},
		{Name: "documents", Value: row.Documents},
		{Name: "started_ts", Value: row.StartedTS},
	})
	if err != nil {
		return "", err
	}
	return row.RunID, nil
}

// MarkRunSucceeded closes the run with its final counts.
func (r *Repository) MarkRunSucceeded(ctx context.Context, runID string, inserted, duplicates int) error {
	return r.runDML(ctx, "MarkRunSucceeded", fmt.Sprintf(`
		UPDATE %s
		SET status = @status, inserted = @inserted, duplicates = @duplicates, finished_ts = @finished_ts
		WHERE run_id = @run_id
	`, r.tableRef(ingestionRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusSucceeded},
		{Name: "inserted", Value: int64(inserted)},
		{Name: "duplicates", Value: int64(duplicates)},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "run_id", Value: runID},
	})
}

// MarkRunFailed records the failure. Errors are logged rather than returned
// so they never mask the error that failed the run.
func (r *Repository) MarkRunFailed(ctx context.Context, runID string, runErr error) {
	msg := ""
	if runErr != nil {
		msg = truncateError(runErr.Error())
	}
	err := r.runDML(ctx, "MarkRunFailed", fmt.Sprintf(`
		UPDATE %s
		SET status = @status, error_message = @error_message, finished_ts = @finished_ts
		WHERE run_id = @run_id
	`, r.tableRef(ingestionRunsTable)), []bigquery.QueryParameter{
		{Name: "status", Value: store.RunStatusFailed},
		{Name: "error_message", Value: msg},
		{Name: "finished_ts", Value: time.Now().UTC()},
		{Name: "run_id", Value: runID},
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("run_id", runID).
			Msg("Failed to mark ingestion run as failed")
	}
}
