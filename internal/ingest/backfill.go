package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/statement-insights/internal/fingerprint"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/normalize"
	"github.com/dvloznov/statement-insights/internal/store"
)

// BackfillReport summarises one fingerprint back-fill pass.
type BackfillReport struct {
	// Rows is the number of stored rows that had no fingerprint.
	Rows    int
	Updated int
	// Duplicates are rows whose fingerprint another row already holds. They
	// are left without a fingerprint.
	Duplicates int
	// LegacyCollisions counts duplicates the older concatenated key kept
	// apart, e.g. descriptions differing only in case.
	LegacyCollisions int
}

// Backfill computes fingerprints for the user's rows stored without one.
// Rows are re-normalized first, so the hash matches what ingestion would
// produce today. With dryRun nothing is written.
func Backfill(ctx context.Context, st store.Store, bf store.Backfiller, n *normalize.Normalizer, userID string, dryRun bool) (BackfillReport, error) {
	ctx, log := logger.ForUser(ctx, userID)
	var report BackfillReport

	if n == nil {
		n = normalize.New(nil)
	}

	corpus, err := st.LoadCorpus(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("Backfill: loading corpus: %w", err)
	}
	missing, err := bf.ListMissingFingerprints(ctx, userID)
	if err != nil {
		return report, fmt.Errorf("Backfill: %w", err)
	}
	report.Rows = len(missing)

	ids := make([]string, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// fingerprint -> legacy key of the row that claimed it in this pass
	claimed := make(map[string]string, len(missing))
	for _, id := range ids {
		tx := n.NormalizeOne(normalize.Denormalize(missing[id]))
		fp := fingerprint.Compute(tx)
		legacy := fingerprint.LegacyKey(missing[id])

		if corpus.Contains(fp) {
			report.Duplicates++
			continue
		}
		if prev, ok := claimed[fp]; ok {
			report.Duplicates++
			if prev != legacy {
				report.LegacyCollisions++
				log.Warn().
					Str("row_id", id).
					Str("legacy_key", legacy).
					Str("colliding_key", prev).
					Msg("Rows distinct under the legacy key share a fingerprint")
			}
			continue
		}
		claimed[fp] = legacy

		if dryRun {
			report.Updated++
			continue
		}
		if err := bf.SetFingerprint(ctx, id, fp); err != nil {
			return report, fmt.Errorf("Backfill: %w", err)
		}
		report.Updated++
	}

	log.Info().
		Int("rows", report.Rows).
		Int("updated", report.Updated).
		Int("duplicates", report.Duplicates).
		Int("legacy_collisions", report.LegacyCollisions).
		Bool("dry_run", dryRun).
		Msg("Fingerprint back-fill completed")
	return report, nil
}
