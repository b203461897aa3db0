package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/ticktick"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Fetch incomplete TickTick tasks",
	Long: `Fetch all incomplete tasks from open TickTick projects.

Requires ticktick.access_token in the config file. Tokens can be obtained
from the TickTick developer console.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := store.Load()
		if err != nil {
			return err
		}

		data, err := ticktick.NewClient().Fetch(cmd.Context(), cfg.TickTick.AccessToken)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
