// Package invoices owns the invoice lifecycle: creation with carry-forward,
// bill edits, status corrections, penalties and soft cancellation.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/balance"
	"github.com/angelmondragon/propertyledger-backend/internal/billing"
	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/internal/invoicestatus"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/config"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
	"github.com/angelmondragon/propertyledger-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the invoice lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindByPeriod(ctx context.Context, contractID uuid.UUID, period string) (*models.Invoice, error)
	List(ctx context.Context, params ListParams) (pagination.Page[models.Invoice], error)
	View(ctx context.Context, id uuid.UUID) (*View, error)
	UpdateBill(ctx context.Context, id uuid.UUID, input UpdateBillInput) (*models.Invoice, error)
	SetStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) (*models.Invoice, error)
	RecomputeStatus(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ApplyPenalty(ctx context.Context, id uuid.UUID) (*models.Invoice, bool, error)
	WaivePenalty(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error)
	ListOverdueCandidates(ctx context.Context, limit int) ([]models.Invoice, error)
}

// Policy is the tariff and penalty configuration applied to new invoices.
type Policy struct {
	Rates       billing.Rates
	PenaltyRate decimal.Decimal
	DueAfter    time.Duration
}

// PolicyFromConfig parses the billing section of the service config.
func PolicyFromConfig(cfg config.BillingConfig) (Policy, error) {
	water, electricity, err := cfg.Rates()
	if err != nil {
		return Policy{}, err
	}
	penalty, err := cfg.Penalty()
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		Rates:       billing.Rates{Water: water, Electricity: electricity},
		PenaltyRate: penalty,
		DueAfter:    cfg.DueAfter(),
	}, nil
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Ledger    ledger.Repository
	Contracts contracts.Repository
	Resolver  balance.Resolver
	Locks     lock.Mutex
	Logger    *logger.Logger
	Metrics   *metrics.BillingMetrics
	Policy    Policy
	Now       func() time.Time
}

type service struct {
	tx        txRunner
	repo      Repository
	ledger    ledger.Repository
	contracts contracts.Repository
	resolver  balance.Resolver
	locks     lock.Mutex
	logg      *logger.Logger
	metrics   *metrics.BillingMetrics
	policy    Policy
	now       func() time.Time
}

// NewService builds an invoice service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Repo == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Contracts == nil:
		return nil, fmt.Errorf("contract repository required")
	case params.Resolver == nil:
		return nil, fmt.Errorf("balance resolver required")
	case params.Locks == nil:
		return nil, fmt.Errorf("lock required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if params.Policy.PenaltyRate.IsZero() {
		params.Policy.PenaltyRate = billing.DefaultPenaltyRate
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		repo:      params.Repo,
		ledger:    params.Ledger,
		contracts: params.Contracts,
		resolver:  params.Resolver,
		locks:     params.Locks,
		logg:      params.Logger,
		metrics:   params.Metrics,
		policy:    params.Policy,
		now:       func() time.Time { return now().UTC() },
	}, nil
}

// CreateInput describes a new invoice. Nil rates fall back to the standard
// tariff and a nil rent to the contract's rent.
type CreateInput struct {
	ContractID      uuid.UUID
	BillingPeriod   string
	Rent            *decimal.Decimal
	WaterUnit       decimal.Decimal
	ElectricityUnit decimal.Decimal
	WaterRate       *decimal.Decimal
	ElectricityRate *decimal.Decimal
	AddonAmount     decimal.Decimal
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	invoice, err := s.create(ctx, input)
	if err != nil {
		s.metrics.Rejected("create_invoice", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	return invoice, nil
}

func (s *service) create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if input.ContractID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	period, err := ParsePeriod(input.BillingPeriod)
	if err != nil {
		return nil, err
	}
	contract, err := s.contracts.FindByID(ctx, input.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	if !contract.ActiveDuring(period.Start, period.End) {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "contract is not active during %s", period.Key)
	}

	bill := billing.BillInput{
		Rent:            contract.RentAmount,
		WaterUnit:       input.WaterUnit,
		WaterRate:       s.policy.Rates.Water,
		ElectricityUnit: input.ElectricityUnit,
		ElectricityRate: s.policy.Rates.Electricity,
		AddonAmount:     input.AddonAmount,
	}
	if input.Rent != nil {
		bill.Rent = *input.Rent
	}
	if input.WaterRate != nil {
		bill.WaterRate = *input.WaterRate
	}
	if input.ElectricityRate != nil {
		bill.ElectricityRate = *input.ElectricityRate
	}
	breakdown, err := billing.ComputeBill(bill)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithContractID(ctx, contract.ID.String())
	unlockContract, err := s.locks.Lock(ctx, lock.ContractKey(contract.ID))
	if err != nil {
		return nil, err
	}
	defer unlockContract()

	// Hold the prior invoice's lock so no payment lands on it while its
	// remainder is being snapshotted.
	prior, err := s.resolver.ResolveBefore(ctx, nil, contract.ID, period.Start, nil)
	if err != nil {
		return nil, err
	}
	if prior.PriorInvoiceID != nil {
		unlockPrior, err := s.locks.Lock(ctx, lock.InvoiceKey(*prior.PriorInvoiceID))
		if err != nil {
			return nil, err
		}
		defer unlockPrior()
	}

	var created *models.Invoice
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByContractPeriod(ctx, contract.ID, period.Key)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing invoice")
		}
		if existing != nil {
			return duplicatePeriod(existing)
		}

		snapshot, err := s.resolver.ResolveBefore(ctx, tx, contract.ID, period.Start, nil)
		if err != nil {
			return err
		}
		if !samePrior(prior.PriorInvoiceID, snapshot.PriorInvoiceID) {
			return pkgerrors.New(pkgerrors.CodeConflict, "previous invoice changed while creating; retry")
		}

		invoice := &models.Invoice{
			ContractID:      contract.ID,
			CreateDate:      period.Start,
			BillingPeriod:   period.Key,
			DueDate:         period.Start.Add(s.policy.DueAfter),
			Rent:            bill.Rent,
			WaterUnit:       bill.WaterUnit,
			ElectricityUnit: bill.ElectricityUnit,
			WaterRate:       bill.WaterRate,
			ElectricityRate: bill.ElectricityRate,
			AddonAmount:     bill.AddonAmount,
			WaterBill:       breakdown.WaterBill,
			ElectricityBill: breakdown.ElectricityBill,
			SubTotal:        breakdown.SubTotal,
			PreviousBalance: snapshot.Outstanding,
			PenaltyTotal:    decimal.Zero,
			NetAmount:       billing.NetAmount(breakdown.SubTotal, decimal.Zero, snapshot.Outstanding),
			Status:          enums.InvoiceStatusIncomplete,
		}
		invoicestatus.Promote(invoice, decimal.Zero, s.now())
		if err := repo.Create(ctx, invoice); err != nil {
			if db.IsUniqueViolation(err, "idx_invoices_contract_period") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice already exists for period")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithInvoiceID(ctx, created.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"billing_period":   created.BillingPeriod,
		"net_amount":       money.Format(created.NetAmount),
		"previous_balance": money.Format(created.PreviousBalance),
	})
	s.logg.Info(logCtx, "invoice created")
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load invoice")
	}
	return invoice, nil
}

func (s *service) FindByPeriod(ctx context.Context, contractID uuid.UUID, period string) (*models.Invoice, error) {
	parsed, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByContractPeriod(ctx, contractID, parsed.Key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice for period")
	}
	return invoice, nil
}

// ListParams filters and pages invoice listings.
type ListParams struct {
	ContractID       *uuid.UUID
	Status           *enums.InvoiceStatus
	BillingPeriod    string
	IncludeCancelled bool
	pagination.Params
}

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Invoice], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Invoice]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := ListFilter{
		ContractID:       params.ContractID,
		Status:           params.Status,
		IncludeCancelled: params.IncludeCancelled,
		Cursor:           cursor,
		Limit:            params.Limit,
	}
	if params.BillingPeriod != "" {
		period, err := ParsePeriod(params.BillingPeriod)
		if err != nil {
			return pagination.Page[models.Invoice]{}, err
		}
		filter.BillingPeriod = period.Key
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Page[models.Invoice]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return pagination.Build(rows, params.Limit, func(inv models.Invoice) pagination.Cursor {
		return pagination.Cursor{At: inv.CreateDate, ID: inv.ID}
	}), nil
}

// View is an invoice with its ledger totals and projected state.
type View struct {
	Invoice   models.Invoice
	Totals    ledger.Totals
	Remaining decimal.Decimal
	State     enums.InvoiceView
	Locked    bool
}

func (s *service) View(ctx context.Context, id uuid.UUID) (*View, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByInvoiceID(ctx, invoice.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	totals := ledger.Summarize(records)
	return &View{
		Invoice:   *invoice,
		Totals:    totals,
		Remaining: totals.Remaining(invoice.NetAmount),
		State:     invoicestatus.Project(invoice, totals.Confirmed, s.now()),
		Locked:    totals.Locked(),
	}, nil
}

func (s *service) ListOverdueCandidates(ctx context.Context, limit int) ([]models.Invoice, error) {
	rows, err := s.repo.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list overdue invoices")
	}
	return rows, nil
}

// mutation edits a locked, freshly loaded invoice and reports whether it changed.
type mutation func(ctx context.Context, invoice *models.Invoice, totals ledger.Totals) (bool, error)

// mutate serialises fn against every other writer of the invoice: the
// keyed lock is taken first, then a transaction with the row locked.
func (s *service) mutate(ctx context.Context, id uuid.UUID, operation string, fn mutation) (*models.Invoice, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	ctx = s.logg.WithInvoiceID(ctx, id.String())
	unlock, err := s.locks.Lock(ctx, lock.InvoiceKey(id))
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	defer unlock()

	var result *models.Invoice
	changed := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundOr(err, "load invoice")
		}
		records, err := s.ledger.WithTx(tx).ListByInvoiceID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}
		changed, err = fn(ctx, invoice, ledger.Summarize(records))
		if err != nil {
			return err
		}
		if changed {
			if err := repo.Save(ctx, invoice); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save invoice")
			}
		}
		result = invoice
		return nil
	})
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	if changed {
		s.logg.Info(s.logg.WithField(ctx, "operation", operation), "invoice updated")
	}
	return result, nil
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func duplicatePeriod(existing *models.Invoice) error {
	return pkgerrors.Newf(pkgerrors.CodeConflict, "invoice already exists for %s", existing.BillingPeriod).
		WithDetails(map[string]any{"invoice_id": existing.ID})
}

func samePrior(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
