package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/propertyledger-backend/internal/usageimport"
)

func (c *cli) importUsageCmd() *cobra.Command {
	var (
		file        string
		concurrency int
		failOnError bool
	)
	cmd := &cobra.Command{
		Use:     "import-usage",
		Short:   "Create or update invoices from a meter-reading CSV",
		Example: "  billingctl import-usage --file readings-2026-01.csv --concurrency 4",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			opts := usageimport.Options{
				Concurrency: c.rt.Config.Import.Concurrency,
				MaxRows:     c.rt.Config.Import.MaxRows,
			}
			if concurrency > 0 {
				opts.Concurrency = concurrency
			}
			result, err := c.rt.Services.Importer.ImportCSV(cmd.Context(), f, opts)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if failOnError && len(result.Rejected) > 0 {
				return fmt.Errorf("%d row(s) rejected", len(result.Rejected))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the CSV export")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "rows applied in parallel (defaults to config)")
	cmd.Flags().BoolVar(&failOnError, "fail-on-reject", false, "exit non-zero when any row is rejected")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
