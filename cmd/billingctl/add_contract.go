package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

const dateLayout = "2006-01-02"

func (c *cli) addContractCmd() *cobra.Command {
	var room, label, tenant, rent, start, end string
	cmd := &cobra.Command{
		Use:     "add-contract",
		Short:   "Register a tenancy contract, creating the room if needed",
		Example: "  billingctl add-contract --room A101 --tenant 'Somchai' --rent 4000 --start 2026-01-01",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rentAmount, err := money.Parse(rent)
			if err != nil {
				return fmt.Errorf("invalid --rent: %w", err)
			}
			startDate, err := time.Parse(dateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			input := contracts.RegisterInput{
				RoomNumber: room,
				RoomLabel:  label,
				TenantName: tenant,
				RentAmount: rentAmount,
				StartDate:  startDate,
			}
			if end != "" {
				endDate, err := time.Parse(dateLayout, end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				input.EndDate = &endDate
			}
			contract, err := c.rt.Services.Contracts.Register(cmd.Context(), input)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"id":          contract.ID,
				"room_id":     contract.RoomID,
				"tenant_name": contract.TenantName,
				"rent_amount": contract.RentAmount,
				"start_date":  contract.StartDate.Format(dateLayout),
			})
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "room number")
	cmd.Flags().StringVar(&label, "label", "", "room label for new rooms")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant name")
	cmd.Flags().StringVar(&rent, "rent", "", "monthly rent")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "end date (YYYY-MM-DD), open-ended when omitted")
	for _, name := range []string{"room", "tenant", "rent", "start"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
