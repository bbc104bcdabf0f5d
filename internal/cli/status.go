package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusResult struct {
	Outbox struct {
		Pending     int `json:"pending"`
		DeadLetters int `json:"deadLetters"`
	} `json:"outbox"`
	Mesh *struct {
		Status   string `json:"status"`
		Nodes    int    `json:"nodes"`
		Strength int    `json:"strength"`
		Region   string `json:"region"`
	} `json:"mesh,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node presence and outbox backlog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}

			var result statusResult
			if err := c.Get("/status", &result); err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			if result.Mesh != nil {
				fmt.Fprintf(out, "mesh:    %s (%d nodes, strength %d, %s)\n",
					result.Mesh.Status, result.Mesh.Nodes, result.Mesh.Strength, result.Mesh.Region)
			}
			fmt.Fprintf(out, "outbox:  %d pending, %d dead letters\n",
				result.Outbox.Pending, result.Outbox.DeadLetters)
			return nil
		},
	}
}
