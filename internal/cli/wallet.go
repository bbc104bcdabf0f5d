package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/amasampo/mesh/internal/currency"
)

// NewWalletCommand creates the wallet command group.
func NewWalletCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect and move wallet funds",
	}
	cmd.AddCommand(newBalanceCommand(rootOpts))
	cmd.AddCommand(newDepositCommand(rootOpts))
	cmd.AddCommand(newWithdrawCommand(rootOpts))
	cmd.AddCommand(newTransactionsCommand(rootOpts))
	return cmd
}

func newBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the current balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}
			var result struct {
				UserID  string          `json:"userId"`
				Balance decimal.Decimal `json:"balance"`
			}
			if err := c.Get("/wallet", &result); err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n",
				result.UserID, currency.Format(result.Balance, currency.Base))
			return nil
		},
	}
}

func moveFunds(rootOpts *RootOptions, cmd *cobra.Command, endpoint, amount, provider string) error {
	if _, err := decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("invalid amount %q", amount)
	}

	c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
	if err != nil {
		return err
	}
	var tx map[string]any
	if err := c.Post(endpoint, map[string]string{
		"amount":   amount,
		"provider": provider,
	}, &tx); err != nil {
		return err
	}
	if rootOpts.Format == "json" {
		return printJSON(cmd.OutOrStdout(), tx)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: transaction %v\n", tx["id"])
	return nil
}

func newDepositCommand(rootOpts *RootOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit funds from a mobile money provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moveFunds(rootOpts, cmd, "/wallet/deposit", args[0], provider)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "MTN", "payment provider")
	return cmd
}

func newWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw funds to a mobile money provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moveFunds(rootOpts, cmd, "/wallet/withdraw", args[0], provider)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "MTN", "payment provider")
	return cmd
}

func newTransactionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List the user's transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := NewClient(rootOpts.Addr, rootOpts.UserID)
			if err != nil {
				return err
			}
			var txs []struct {
				ID        string          `json:"id"`
				Type      string          `json:"type"`
				Amount    decimal.Decimal `json:"amount"`
				Status    string          `json:"status"`
				Timestamp string          `json:"timestamp"`
			}
			if err := c.Get("/wallet/transactions", &txs); err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), txs)
			}
			for _, tx := range txs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s  %12s  %s  %s\n",
					tx.Timestamp, tx.Type, currency.Format(tx.Amount, currency.Base), tx.Status, tx.ID)
			}
			return nil
		},
	}
}
