package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/amasampo/mesh/internal/currency"
)

type listingRow struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      string          `json:"type"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	IsBoosted bool            `json:"isBoosted"`
	Views     int64           `json:"views"`
	Location  string          `json:"location"`
}

// NewListingsCommand creates the listings command group.
func NewListingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Browse and promote listings",
	}
	cmd.AddCommand(newListingsListCommand(rootOpts))
	cmd.AddCommand(newListingsBoostCommand(rootOpts))
	return cmd
}

func newListingsListCommand(rootOpts *RootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}
			path := "/listings"
			if owner != "" {
				path += "?owner=" + owner
			}
			var rows []listingRow
			if err := c.Get(path, &rows); err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), rows)
			}
			for _, l := range rows {
				marker := " "
				if l.IsBoosted {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-36s  %-10s  %12s  %4dv  %s\n",
					marker, l.ID, l.Type, currency.Format(l.Price, currency.Base), l.Views, l.Title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner id")
	return cmd
}

func newListingsBoostCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "boost <listing-id>",
		Short: "Pay the boost price to promote a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}
			var tx map[string]any
			if err := c.Post("/listings/"+args[0]+"/boost", nil, &tx); err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), tx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "boosted: transaction %v\n", tx["id"])
			return nil
		},
	}
}

