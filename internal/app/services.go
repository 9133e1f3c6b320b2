// Package app assembles the billing services shared by the API, the cron
// worker and billingctl.
package app

import (
	"fmt"
	"time"

	"github.com/angelmondragon/propertyledger-backend/internal/balance"
	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/internal/payments"
	"github.com/angelmondragon/propertyledger-backend/internal/rooms"
	"github.com/angelmondragon/propertyledger-backend/internal/usageimport"
	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
)

type Params struct {
	Config  *config.Config
	DB      *db.Client
	Locks   lock.Mutex
	Logger  *logger.Logger
	Metrics *metrics.BillingMetrics
	// Now overrides the clock; tests pin it.
	Now func() time.Time
}

type Services struct {
	Contracts contracts.Service
	Resolver  balance.Resolver
	Invoices  invoices.Service
	Payments  payments.Service
	Importer  *usageimport.Importer
}

func NewServices(p Params) (*Services, error) {
	if p.Config == nil || p.DB == nil || p.Locks == nil || p.Logger == nil {
		return nil, fmt.Errorf("config, db, locks and logger are required")
	}
	conn := p.DB.DB()

	policy, err := invoices.PolicyFromConfig(p.Config.Billing)
	if err != nil {
		return nil, fmt.Errorf("billing policy: %w", err)
	}

	contractRepo := contracts.NewRepository(conn)
	invoiceRepo := invoices.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	contractSvc, err := contracts.NewService(p.DB, rooms.NewRepository(conn), contractRepo, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("contracts service: %w", err)
	}
	resolver, err := balance.NewResolver(balance.NewRepository(conn), ledgerRepo, p.Logger, p.Metrics)
	if err != nil {
		return nil, fmt.Errorf("balance resolver: %w", err)
	}
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Tx:        p.DB,
		Repo:      invoiceRepo,
		Ledger:    ledgerRepo,
		Contracts: contractRepo,
		Resolver:  resolver,
		Locks:     p.Locks,
		Logger:    p.Logger,
		Metrics:   p.Metrics,
		Policy:    policy,
		Now:       p.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("invoices service: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Tx:          p.DB,
		Invoices:    invoiceRepo,
		Ledger:      ledgerRepo,
		Locks:       p.Locks,
		Logger:      p.Logger,
		Metrics:     p.Metrics,
		AutoConfirm: p.Config.Payments.AutoConfirm,
		Now:         p.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}
	importer, err := usageimport.NewImporter(contractSvc, invoiceSvc, p.Logger, p.Metrics)
	if err != nil {
		return nil, fmt.Errorf("usage importer: %w", err)
	}

	return &Services{
		Contracts: contractSvc,
		Resolver:  resolver,
		Invoices:  invoiceSvc,
		Payments:  paymentSvc,
		Importer:  importer,
	}, nil
}
