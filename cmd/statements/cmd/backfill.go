package cmd

import (
	"fmt"

	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/spf13/cobra"
)

var backfillDryRun bool

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute fingerprints for rows stored without one",
	Long: `Backfill re-normalizes the user's rows that were stored before fingerprints
existed, hashes them and writes the fingerprint back. Rows whose fingerprint
another row already holds are left untouched and reported as duplicates.

Examples:
  statements backfill --user alice --dry-run
  statements backfill --user alice`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "report what would change without writing")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	userID, err := requireUser(e.cfg)
	if err != nil {
		return err
	}

	opts := app.PipelineOptions(e.cfg)
	report, err := ingest.Backfill(e.ctx, e.backend, e.backend, opts.Normalizer, userID, backfillDryRun)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Rows without fingerprint: %d\n", report.Rows)
	if backfillDryRun {
		fmt.Fprintf(out, "Would update:             %d\n", report.Updated)
	} else {
		fmt.Fprintf(out, "Updated:                  %d\n", report.Updated)
	}
	fmt.Fprintf(out, "Duplicates left as-is:    %d\n", report.Duplicates)
	fmt.Fprintf(out, "Legacy key collisions:    %d\n", report.LegacyCollisions)
	return nil
}
