package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/dedup"
	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const dateFormat = "2006-01-02"

const transactionColumns = `
	transaction_id, user_id, document_id, run_id, COALESCE(fingerprint, '') AS fingerprint,
	customer_id, f_name, l_name, address,
	transaction_date, posting_date,
	activity_description, category, sub_category,
	amount_spent, credit_limit, available_credit, is_subscription,
	year, month, day, month_name, day_of_week, created_ts`

// LoadCorpus returns every non-empty fingerprint stored for userID.
func (r *Repository) LoadCorpus(ctx context.Context, userID string) (*dedup.Corpus, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT DISTINCT fingerprint
		FROM %s
		WHERE user_id = @user_id AND fingerprint != ''
	`, r.tableRef(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	fps, err := readStrings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("LoadCorpus: %w", err)
	}
	return dedup.NewCorpus(fps...), nil
}

// InsertTransactions streams txs into the transactions table. BigQuery has
// no unique constraints, so existing (user_id, fingerprint) pairs are looked
// up first and skipped; the insert id makes a retried Put idempotent.
func (r *Repository) InsertTransactions(ctx context.Context, userID string, txs []domain.Transaction) (store.InsertResult, error) {
	var res store.InsertResult
	if len(txs) == 0 {
		return res, nil
	}

	fps := make([]string, 0, len(txs))
	for _, tx := range txs {
		if tx.Fingerprint == "" {
			return res, fmt.Errorf("InsertTransactions: transaction %q has no fingerprint", tx.ActivityDescription)
		}
		fps = append(fps, tx.Fingerprint)
	}

	existing, err := r.existingFingerprints(ctx, userID, fps)
	if err != nil {
		return res, fmt.Errorf("InsertTransactions: %w", err)
	}

	now := time.Now().UTC()
	savers := make([]*bigquery.StructSaver, 0, len(txs))
	for _, tx := range txs {
		if _, dup := existing[tx.Fingerprint]; dup {
			res.Conflicts++
			res.Rejected = append(res.Rejected, tx.Fingerprint)
			continue
		}
		existing[tx.Fingerprint] = struct{}{}
		row := toTransactionRow(userID, store.RunIDFromContext(ctx), uuid.NewString(), tx, now)
		savers = append(savers, &bigquery.StructSaver{
			Struct:   row,
			InsertID: userID + ":" + tx.Fingerprint,
		})
	}

	if len(savers) > 0 {
		if err := r.table(transactionsTable).Inserter().Put(ctx, savers); err != nil {
			return res, fmt.Errorf("InsertTransactions: inserting rows: %w", err)
		}
	}
	res.Inserted = len(savers)

	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Int("inserted", res.Inserted).
		Int("conflicts", res.Conflicts).
		Msg("Transactions written to BigQuery")
	return res, nil
}

func (r *Repository) existingFingerprints(ctx context.Context, userID string, fps []string) (map[string]struct{}, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT fingerprint
		FROM %s
		WHERE user_id = @user_id AND fingerprint IN UNNEST(@fingerprints)
	`, r.tableRef(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "fingerprints", Value: fps},
	}

	found, err := readStrings(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("existing fingerprints: %w", err)
	}
	out := make(map[string]struct{}, len(found))
	for _, fp := range found {
		out[fp] = struct{}{}
	}
	return out, nil
}

// ListTransactions queries the user's transactions ordered by date.
func (r *Repository) ListTransactions(ctx context.Context, userID string, filter store.ListFilter) ([]domain.Transaction, error) {
	sql, params := r.listQuery(userID, filter)
	q := r.client.Query(sql)
	q.Parameters = params

	rows, err := readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) listQuery(userID string, filter store.ListFilter) (string, []bigquery.QueryParameter) {
	where := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	if filter.From != nil {
		where = append(where, "transaction_date >= @start_date")
		params = append(params, bigquery.QueryParameter{Name: "start_date", Value: filter.From.Format(dateFormat)})
	}
	if filter.To != nil {
		where = append(where, "transaction_date <= @end_date")
		params = append(params, bigquery.QueryParameter{Name: "end_date", Value: filter.To.Format(dateFormat)})
	}

	sql := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY transaction_date IS NULL, transaction_date, created_ts`,
		transactionColumns, r.tableRef(transactionsTable), strings.Join(where, " AND "))
	if filter.Limit > 0 {
		sql += "\n\t\tLIMIT @limit"
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}
	return sql, params
}

// ListMissingFingerprints returns rows stored without a fingerprint, keyed by transaction_id.
func (r *Repository) ListMissingFingerprints(ctx context.Context, userID string) (map[string]domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND (fingerprint IS NULL OR fingerprint = '')
	`, transactionColumns, r.tableRef(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	rows, err := readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListMissingFingerprints: %w", err)
	}
	out := make(map[string]domain.Transaction, len(rows))
	for _, row := range rows {
		out[row.TransactionID] = row.toDomain()
	}
	return out, nil
}

// SetFingerprint back-fills the fingerprint of one row.
func (r *Repository) SetFingerprint(ctx context.Context, rowID, fp string) error {
	return r.runDML(ctx, "SetFingerprint", fmt.Sprintf(`
		UPDATE %s
		SET fingerprint = @fingerprint
		WHERE transaction_id = @transaction_id
	`, r.tableRef(transactionsTable)), []bigquery.QueryParameter{
		{Name: "fingerprint", Value: fp},
		{Name: "transaction_id", Value: rowID},
	})
}

func readStrings(ctx context.Context, q *bigquery.Query) ([]string, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var out []string
	for {
		var row struct {
			Fingerprint string `bigquery:"fingerprint"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		out = append(out, row.Fingerprint)
	}
	return out, nil
}

func readTransactionRows(ctx context.Context, q *bigquery.Query) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var rows []*TransactionRow
	for {
		var row TransactionRow
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
