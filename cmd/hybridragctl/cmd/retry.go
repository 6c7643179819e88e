package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCmd() *cobra.Command {
	var id uint64
	var all bool

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry a pending unresolved query against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			if all {
				if err := postJSON("/retry_all", &out); err != nil {
					return err
				}
			} else {
				if id == 0 {
					return fmt.Errorf("--id is required unless --all is set")
				}
				if err := postJSON(fmt.Sprintf("/retry?id=%d", id), &out); err != nil {
					return err
				}
			}
			fmt.Println(prettyJSON(out))
			return nil
		},
	}

	cmd.Flags().Uint64Var(&id, "id", 0, "Pending query id to retry")
	cmd.Flags().BoolVar(&all, "all", false, "Retry every pending query whose hints now match a new document")
	return cmd
}
