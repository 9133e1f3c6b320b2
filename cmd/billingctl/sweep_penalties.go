package main

import (
	"github.com/spf13/cobra"

	"github.com/angelmondragon/propertyledger-backend/internal/cron"
)

func (c *cli) sweepPenaltiesCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep-penalties",
		Short: "Apply the overdue penalty to every eligible invoice once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if batch <= 0 {
				batch = c.rt.Config.Cron.SweepBatchSize
			}
			job, err := cron.NewPenaltySweepJob(cron.PenaltySweepJobParams{
				Logger:    c.rt.Logger,
				Invoices:  c.rt.Services.Invoices,
				BatchSize: batch,
			})
			if err != nil {
				return err
			}
			report, sweepErr := job.Sweep(cmd.Context())
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return sweepErr
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "maximum invoices per sweep (defaults to config)")
	return cmd
}
