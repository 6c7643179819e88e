package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory and document-change-detector statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if err := getJSON("/stats", &out); err != nil {
				return err
			}
			fmt.Println(prettyJSON(out))
			return nil
		},
	}
}
