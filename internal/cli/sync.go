package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command group.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Control the outbox sync loop",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Force an immediate outbox drain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}
			if err := c.Post("/sync/flush", nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "flush complete")
			return nil
		},
	})
	return cmd
}
