package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func (c *cli) resolveBalanceCmd() *cobra.Command {
	var contract, asOf string
	cmd := &cobra.Command{
		Use:   "resolve-balance",
		Short: "Show the carry-forward balance of a contract",
		RunE: func(cmd *cobra.Command, _ []string) error {
			contractID, err := uuid.Parse(contract)
			if err != nil {
				return fmt.Errorf("invalid --contract: %w", err)
			}
			var asOfID *uuid.UUID
			if asOf != "" {
				id, err := uuid.Parse(asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of: %w", err)
				}
				asOfID = &id
			}
			result, err := c.rt.Services.Resolver.Resolve(cmd.Context(), contractID, asOfID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "contract id")
	cmd.Flags().StringVar(&asOf, "as-of", "", "invoice id; report the balance carried into this invoice instead of the latest")
	_ = cmd.MarkFlagRequired("contract")
	return cmd
}
