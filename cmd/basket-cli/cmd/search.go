package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the stock catalogue by code or name",
	Long: `Search matches the query case-insensitively against stock codes and
names and prints at most 10 results. An empty query prints nothing.

Example:
  basket-cli search toyota`,
	Args: cobra.ArbitraryArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := strings.Join(args, " ")
	stocks, err := newClient().SearchStocks(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(stocks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matches")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tMARKET\tNAME")
	for _, s := range stocks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Code, s.Market, s.Name)
	}
	return tw.Flush()
}
