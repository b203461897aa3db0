package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/weather"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Fetch the current weather and hourly forecast",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := store.Load()
		if err != nil {
			return err
		}

		data, err := weather.NewClient().Fetch(cmd.Context(), cfg.Weather)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

func init() {
	rootCmd.AddCommand(weatherCmd)
}
