package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinothpandian/inkdash/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Print today's day timeline",
	Long: `Resolve and print the day timeline for today.

The timeline is read from timeline.toml in the config directory. Day-specific
overrides win over the default schedule; a built-in schedule is used when no
timeline.toml exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := timeline.DefaultPath()
		if err != nil {
			return err
		}

		resp, err := timeline.ForToday(path)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(timelineCmd)
}
