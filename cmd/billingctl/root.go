package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/propertyledger-backend/internal/app"
	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

type runtimeOpener func(ctx context.Context) (*app.Runtime, error)

// cli carries the runtime opened once per invocation.
type cli struct {
	open runtimeOpener
	rt   *app.Runtime
}

func openRuntime(ctx context.Context) (*app.Runtime, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "billingctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return app.Open(ctx, cfg, logg)
}

func newRootCmd(open runtimeOpener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate the property billing ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open runtime: %w", err)
			}
			c.rt = rt
			return nil
		},
	}
	root.AddCommand(
		c.importUsageCmd(),
		c.resolveBalanceCmd(),
		c.sweepPenaltiesCmd(),
		c.addContractCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
