package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/stocks"
)

var stocksCmd = &cobra.Command{
	Use:   "stocks",
	Short: "Fetch quotes for the configured tickers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := store.Load()
		if err != nil {
			return err
		}

		quotes, err := stocks.NewClient().Fetch(cmd.Context(), cfg.Stocks.Tickers)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(quotes)
	},
}

func init() {
	rootCmd.AddCommand(stocksCmd)
}
