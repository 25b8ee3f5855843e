package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/statement-insights/internal/app"
	"github.com/dvloznov/statement-insights/internal/ingest"
	"github.com/dvloznov/statement-insights/internal/notionsync"
	"github.com/spf13/cobra"
)

// Flags for the ingest command
var (
	ingestSkipSeen     bool
	ingestNoExport     bool
	ingestDryRunExport bool
	ingestOutput       string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest FILE|gs://BUCKET/OBJECT...",
	Short: "Extract and store transactions from statements",
	Long: `Ingest sends each statement to Gemini, normalizes the extracted records,
drops transactions the user already has and stores the rest in one batch.

A document the model cannot read is reported and skipped; the other
documents are still ingested.

Examples:
  statements ingest --user alice march.pdf
  statements ingest --user alice --skip-seen gs://bucket/statements/april.pdf
  statements ingest --user alice --output-format json *.pdf`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateOutputFormat(&ingestOutput),
	RunE:    runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestSkipSeen, "skip-seen", false, "skip documents whose checksum was ingested before")
	ingestCmd.Flags().BoolVar(&ingestNoExport, "no-export", false, "do not export new transactions to Notion")
	ingestCmd.Flags().BoolVar(&ingestDryRunExport, "dry-run-export", false, "log Notion pages instead of creating them")
	ingestCmd.Flags().StringVarP(&ingestOutput, "output-format", "f", "console", "output format: console, json")
}

func runIngest(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	userID, err := requireUser(e.cfg)
	if err != nil {
		return err
	}

	services, err := app.NewServices(e.ctx, e.cfg, e.backend, app.IngestOptions{
		SkipSeen:     ingestSkipSeen,
		NoExport:     ingestNoExport,
		DryRunExport: ingestDryRunExport,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	docs, err := ingest.LoadDocuments(e.ctx, services.Objects, args)
	if err != nil {
		return err
	}

	report, err := services.Ingest.Ingest(e.ctx, userID, docs)
	if err != nil {
		return err
	}

	if ingestOutput == "json" {
		return writeJSON(cmd.OutOrStdout(), toIngestView(report))
	}
	writeIngestReport(cmd.OutOrStdout(), report)
	return nil
}

type documentView struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Records    int    `json:"records"`
	Error      string `json:"error,omitempty"`
}

type ingestView struct {
	RunID      string                   `json:"run_id,omitempty"`
	Inserted   int                      `json:"inserted"`
	Duplicates int                      `json:"duplicate_count"`
	Conflicts  int                      `json:"conflicts"`
	Documents  []documentView           `json:"documents"`
	Skipped    []string                 `json:"skipped_documents,omitempty"`
	Exported   *notionsync.ExportResult `json:"notion,omitempty"`
}

func toIngestView(report *ingest.Report) ingestView {
	view := ingestView{
		RunID:      report.RunID,
		Inserted:   report.Inserted,
		Duplicates: report.DuplicateCount,
		Conflicts:  report.Conflicts,
		Documents:  make([]documentView, 0, len(report.Documents)),
		Skipped:    report.SkippedDocuments,
		Exported:   report.Exported,
	}
	for _, d := range report.Documents {
		dv := documentView{DocumentID: d.DocumentID, Name: d.Name, Records: d.Records}
		if d.Err != nil {
			dv.Error = d.Err.Error()
		}
		view.Documents = append(view.Documents, dv)
	}
	return view
}

func writeIngestReport(w io.Writer, report *ingest.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOCUMENT\tRECORDS\tSTATUS")
	for _, d := range report.Documents {
		status := "ok"
		if d.Err != nil {
			status = d.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Records, status)
	}
	for _, name := range report.SkippedDocuments {
		fmt.Fprintf(tw, "%s\t-\talready ingested\n", name)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nInserted: %d  Duplicates: %d  Conflicts: %d\n",
		report.Inserted, report.DuplicateCount, report.Conflicts)
	if report.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
	}
	if ex := report.Exported; ex != nil {
		fmt.Fprintf(w, "Notion: %d created, %d skipped, %d failed\n", ex.Created, ex.Skipped, ex.Failed)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// validateOutputFormat rejects formats other than console and json.
func validateOutputFormat(format *string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		switch *format {
		case "console", "json":
			return nil
		}
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", *format)
	}
}
