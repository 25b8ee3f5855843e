package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dvloznov/statement-insights/internal/analytics"
	"github.com/dvloznov/statement-insights/internal/store"
	"github.com/spf13/cobra"
)

// Flags for the summary command
var (
	summaryYears  []string
	summaryMonths []string
	summaryOutput string
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print spending aggregates for stored transactions",
	Long: `Summary loads the user's stored transactions and prints totals, category
and merchant rankings, and month and weekday breakdowns.

Examples:
  statements summary --user alice
  statements summary --user alice --year 2024 --month March,April
  statements summary --user alice --output-format json`,
	Args:    cobra.NoArgs,
	PreRunE: validateOutputFormat(&summaryOutput),
	RunE:    runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringSliceVar(&summaryYears, "year", nil, "years to include (repeatable or comma-separated)")
	summaryCmd.Flags().StringSliceVar(&summaryMonths, "month", nil, "months to include, 1-12 or names (repeatable or comma-separated)")
	summaryCmd.Flags().StringVarP(&summaryOutput, "output-format", "f", "console", "output format: console, json")
}

func runSummary(cmd *cobra.Command, args []string) error {
	filter, err := analytics.ParseFilter(summaryYears, summaryMonths)
	if err != nil {
		return err
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	userID, err := requireUser(e.cfg)
	if err != nil {
		return err
	}

	txs, err := e.backend.ListTransactions(e.ctx, userID, store.ListFilter{})
	if err != nil {
		return err
	}

	summary := analytics.Summarize(txs, filter)
	if summaryOutput == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"summary":   summary,
			"available": analytics.Options(txs),
		})
	}
	writeSummary(cmd.OutOrStdout(), summary)
	return nil
}

func writeSummary(w io.Writer, s analytics.Summary) {
	fmt.Fprintf(w, "Transactions:        %d\n", s.Transactions)
	fmt.Fprintf(w, "Total spending:      %s\n", s.TotalSpending.StringFixed(2))
	fmt.Fprintf(w, "Total payments:      %s\n", s.TotalPayments.StringFixed(2))
	fmt.Fprintf(w, "Balance:             %s\n", s.Balance.StringFixed(2))
	fmt.Fprintf(w, "Average daily spend: %s\n", s.AverageDailySpend.StringFixed(2))
	if s.MostFrequentCategory != "" {
		fmt.Fprintf(w, "Most frequent:       %s\n", s.MostFrequentCategory)
	}

	writeAmounts(w, "Spending by category", s.ByCategory)
	writeAmounts(w, "Top sub-categories", s.TopSubCategories)
	writeAmounts(w, "Expenses by month", s.ExpensesByMonth)
	writeAmounts(w, "Expenses by weekday", s.ExpensesByWeekday)
	writeAmounts(w, "Subscriptions", s.Subscriptions)

	if len(s.TopMerchants) > 0 {
		fmt.Fprintf(w, "\nTop merchants\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range s.TopMerchants {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Label, c.Count)
		}
		_ = tw.Flush()
	}

	if len(s.LargestExpenses) > 0 {
		fmt.Fprintf(w, "\nLargest expenses\n")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, tx := range s.LargestExpenses {
			date := "-"
			if tx.TransactionDate != nil {
				date = tx.TransactionDate.String()
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", date, tx.ActivityDescription, tx.AmountSpent.Decimal.StringFixed(2))
		}
		_ = tw.Flush()
	}
}

func writeAmounts(w io.Writer, title string, amounts []analytics.Amount) {
	if len(amounts) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, a := range amounts {
		label := a.Label
		if strings.TrimSpace(label) == "" {
			label = "(none)"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", label, a.Amount.StringFixed(2))
	}
	_ = tw.Flush()
}
