package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or migrate the storage schema",
	Long: `Schema prepares the configured backend. For BigQuery it creates the dataset
and applies pending table migrations; for MongoDB it creates the unique
fingerprint index. The memory backend needs nothing.

Examples:
  statements schema
  statements schema --backend mongo`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.backend.EnsureSchema(e.ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema for %s backend is up to date.\n", e.backend.Kind)
	return nil
}
