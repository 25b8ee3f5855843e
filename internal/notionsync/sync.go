// Package notionsync mirrors stored transactions into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/domain"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of transactions to process in a single batch
	BatchSize = 100

	queryPageSize = 100
)

// ExportResult counts what an export did.
type ExportResult struct {
	Created int
	Skipped int
	Failed  int
}

// Exporter creates one Notion page per transaction. Transactions whose
// fingerprint already has a page are skipped, so exporting is idempotent.
type Exporter struct {
	svc        NotionService
	databaseID string
	dryRun     bool
}

// NewExporter returns an exporter writing to databaseID.
func NewExporter(svc NotionService, databaseID string, dryRun bool) *Exporter {
	return &Exporter{svc: svc, databaseID: databaseID, dryRun: dryRun}
}

// Export writes txs for userID. Failures on individual pages are logged and
// counted; only a failure to read the existing pages aborts the export.
func (e *Exporter) Export(ctx context.Context, userID string, txs []domain.Transaction) (ExportResult, error) {
	log := logger.FromContext(ctx)
	var res ExportResult

	log.Info().
		Str("user_id", userID).
		Int("transaction_count", len(txs)).
		Bool("dry_run", e.dryRun).
		Msg("Starting transaction export to Notion")

	existing, err := e.existingFingerprints(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("Export: %w", err)
	}

	log.Info().Int("notion_page_count", len(existing)).Msg("Retrieved existing Notion pages")

	for i := 0; i < len(txs); i += BatchSize {
		end := i + BatchSize
		if end > len(txs) {
			end = len(txs)
		}

		batch := txs[i:end]
		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, tx := range batch {
			if tx.Fingerprint == "" || existing[tx.Fingerprint] {
				res.Skipped++
				continue
			}

			if e.dryRun {
				log.Info().
					Str("fingerprint", tx.Fingerprint).
					Msg("[DRY RUN] Would create new Notion page")
				existing[tx.Fingerprint] = true
				res.Created++
				continue
			}

			page, err := e.svc.CreatePage(ctx, e.databaseID, TransactionToNotionProperties(userID, tx))
			if err != nil {
				log.Warn().
					Err(err).
					Str("fingerprint", tx.Fingerprint).
					Msg("Failed to create Notion page")
				res.Failed++
				continue
			}
			log.Debug().
				Str("fingerprint", tx.Fingerprint).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			existing[tx.Fingerprint] = true
			res.Created++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("Transaction export completed")

	return res, nil
}

// existingFingerprints pages through the user's rows in the database.
func (e *Exporter) existingFingerprints(ctx context.Context, userID string) (map[string]bool, error) {
	out := make(map[string]bool)
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: &notionapi.PropertyFilter{
				Property: PropUser,
				RichText: &notionapi.TextFilterCondition{Equals: userID},
			},
			PageSize: queryPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := e.svc.QueryDatabase(ctx, e.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("querying pages: %w", err)
		}

		for _, page := range resp.Results {
			if fp := extractFingerprint(page); fp != "" {
				out[fp] = true
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return out, nil
}
