package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/spf13/cobra"
)

// documentsCmd groups document subcommands
var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List or delete ingested documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's ingested documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete DOCUMENT_ID...",
	Short: "Delete documents and the transactions extracted from them",
	Long: `Delete removes each document, its stored model output and every transaction
extracted from it. The fingerprints are released, so re-ingesting the same
statement stores its transactions again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentsDelete,
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd, documentsDeleteCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	userID, err := requireUser(e.cfg)
	if err != nil {
		return err
	}

	docs, err := e.backend.ListDocuments(e.ctx, userID)
	if err != nil {
		return err
	}
	writeDocuments(cmd.OutOrStdout(), docs)
	return nil
}

func writeDocuments(w io.Writer, docs []store.DocumentRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tRECORDS\tUPLOADED\tERROR")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", d.DocumentID, d.Name, d.Records, d.CreatedAt.Format("2006-01-02 15:04"), d.Error)
	}
	_ = tw.Flush()
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	userID, err := requireUser(e.cfg)
	if err != nil {
		return err
	}

	for _, id := range args {
		if err := e.backend.DeleteDocument(e.ctx, userID, id); err != nil {
			return fmt.Errorf("deleting %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
