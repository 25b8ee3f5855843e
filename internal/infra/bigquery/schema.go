package bigquery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-insights/internal/logger"
	"google.golang.org/api/iterator"
)

// Migration is one versioned DDL statement. {{table}} placeholders are
// replaced with fully qualified table names before running.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

const migrationsTable = "schema_migrations"

// Migrations lists the schema changes in the order they must be applied.
var Migrations = []Migration{
	{Version: 1, Name: "create_transactions", SQL: `
		CREATE TABLE IF NOT EXISTS {{transactions}} (
			transaction_id       STRING NOT NULL,
			user_id              STRING NOT NULL,
			document_id          STRING,
			run_id               STRING,
			fingerprint          STRING,
			customer_id          STRING,
			f_name               STRING,
			l_name               STRING,
			address              STRING,
			transaction_date     DATE,
			posting_date         DATE,
			activity_description STRING,
			category             STRING,
			sub_category         STRING,
			amount_spent         NUMERIC,
			credit_limit         NUMERIC,
			available_credit     NUMERIC,
			is_subscription      BOOL,
			year                 INT64,
			month                INT64,
			day                  INT64,
			month_name           STRING,
			day_of_week          STRING,
			created_ts           TIMESTAMP NOT NULL
		)
		PARTITION BY DATE(created_ts)
		CLUSTER BY user_id, fingerprint`},
	{Version: 2, Name: "create_documents", SQL: `
		CREATE TABLE IF NOT EXISTS {{documents}} (
			document_id       STRING NOT NULL,
			user_id           STRING NOT NULL,
			run_id            STRING,
			original_filename STRING,
			file_mime_type    STRING,
			checksum_sha256   STRING,
			source_uri        STRING,
			record_count      INT64 NOT NULL,
			error_message     STRING,
			upload_ts         TIMESTAMP NOT NULL
		)`},
	{Version: 3, Name: "create_model_outputs", SQL: `
		CREATE TABLE IF NOT EXISTS {{model_outputs}} (
			output_id   STRING NOT NULL,
			document_id STRING NOT NULL,
			run_id      STRING,
			model_name  STRING,
			raw_json    STRING,
			created_ts  TIMESTAMP NOT NULL
		)`},
	{Version: 4, Name: "create_ingestion_runs", SQL: `
		CREATE TABLE IF NOT EXISTS {{ingestion_runs}} (
			run_id        STRING NOT NULL,
			user_id       STRING NOT NULL,
			status        STRING NOT NULL,
			documents     INT64,
			inserted      INT64,
			duplicates    INT64,
			error_message STRING,
			started_ts    TIMESTAMP NOT NULL,
			finished_ts   TIMESTAMP
		)`},
}

// expand substitutes {{table}} placeholders.
func (r *Repository) expand(sql string) string {
	for _, t := range []string{transactionsTable, documentsTable, modelOutputsTable, ingestionRunsTable, migrationsTable} {
		sql = strings.ReplaceAll(sql, "{{"+t+"}}", r.tableRef(t))
	}
	return sql
}

// EnsureSchema creates the dataset if needed and applies every migration not
// yet recorded in schema_migrations. It returns the versions it applied.
func (r *Repository) EnsureSchema(ctx context.Context, migrations []Migration) ([]int, error) {
	log := logger.FromContext(ctx)

	if err := r.runDML(ctx, "create dataset", fmt.Sprintf(
		"CREATE SCHEMA IF NOT EXISTS `%s.%s`", r.projectID, r.datasetID), nil); err != nil {
		return nil, fmt.Errorf("EnsureSchema: %w", err)
	}
	if err := r.runDML(ctx, "create migrations table", r.expand(`
		CREATE TABLE IF NOT EXISTS {{schema_migrations}} (
			version    INT64 NOT NULL,
			name       STRING NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`), nil); err != nil {
		return nil, fmt.Errorf("EnsureSchema: %w", err)
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("EnsureSchema: %w", err)
	}

	pending := PendingMigrations(migrations, applied)
	var done []int
	for _, m := range pending {
		log.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applying migration")

		if err := r.runDML(ctx, m.Name, r.expand(m.SQL), nil); err != nil {
			return done, fmt.Errorf("EnsureSchema: migration %04d: %w", m.Version, err)
		}
		if err := r.runDML(ctx, "record migration", r.expand(`
			INSERT INTO {{schema_migrations}} (version, name, applied_at)
			VALUES (@version, @name, @applied_at)`), []bigquery.QueryParameter{
			{Name: "version", Value: m.Version},
			{Name: "name", Value: m.Name},
			{Name: "applied_at", Value: time.Now().UTC()},
		}); err != nil {
			return done, fmt.Errorf("EnsureSchema: migration %04d: %w", m.Version, err)
		}
		done = append(done, m.Version)
	}

	log.Info().
		Int("applied", len(done)).
		Int("skipped", len(migrations)-len(done)).
		Msg("Schema up to date")
	return done, nil
}

// PendingMigrations returns the migrations whose version is not in applied,
// ordered by version.
func PendingMigrations(migrations []Migration, applied map[int]bool) []Migration {
	var out []Migration
	for _, m := range migrations {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (r *Repository) appliedVersions(ctx context.Context) (map[int]bool, error) {
	q := r.client.Query(r.expand(`SELECT version FROM {{schema_migrations}}`))
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	applied := make(map[int]bool)
	for {
		var row struct {
			Version int64 `bigquery:"version"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		applied[int(row.Version)] = true
	}
	return applied, nil
}
