// Package balance resolves the unpaid remainder a new invoice carries forward
// from the contract's previous invoice.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

// Result is the carry-forward balance and where it came from.
type Result struct {
	ContractID     uuid.UUID       `json:"contract_id"`
	PriorInvoiceID *uuid.UUID      `json:"prior_invoice_id,omitempty"`
	PriorNetAmount decimal.Decimal `json:"prior_net_amount"`
	ConfirmedPaid  decimal.Decimal `json:"confirmed_paid"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

// Resolver computes outstanding balances. Only the immediately preceding
// invoice is consulted: its own previous_balance already folds in older debt.
type Resolver interface {
	// Resolve returns the balance carried into asOfInvoiceID: the unpaid
	// remainder of the latest invoice created before it. With a nil asOf it
	// returns what the contract's latest invoice still leaves unpaid, which is
	// what the next invoice would pick up.
	Resolve(ctx context.Context, contractID uuid.UUID, asOfInvoiceID *uuid.UUID) (Result, error)
	// ResolveBefore reads the invoice preceding cutoff inside tx (may be nil),
	// so callers holding the right locks get a consistent snapshot.
	ResolveBefore(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, cutoff time.Time, excludeID *uuid.UUID) (Result, error)
}

type resolver struct {
	repo    Repository
	ledger  ledger.Repository
	logg    *logger.Logger
	metrics *metrics.BillingMetrics
}

// NewResolver wires a resolver. billingMetrics may be nil.
func NewResolver(repo Repository, ledgerRepo ledger.Repository, logg *logger.Logger, billingMetrics *metrics.BillingMetrics) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &resolver{repo: repo, ledger: ledgerRepo, logg: logg, metrics: billingMetrics}, nil
}

var endOfTime = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func (r *resolver) Resolve(ctx context.Context, contractID uuid.UUID, asOfInvoiceID *uuid.UUID) (Result, error) {
	if contractID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	cutoff := endOfTime
	if asOfInvoiceID != nil {
		asOf, err := r.repo.FindInvoice(ctx, *asOfInvoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "as-of invoice not found")
			}
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load as-of invoice")
		}
		if asOf.ContractID != contractID {
			return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "as-of invoice belongs to another contract")
		}
		cutoff = asOf.CreateDate
	}
	return r.ResolveBefore(ctx, nil, contractID, cutoff, asOfInvoiceID)
}

func (r *resolver) ResolveBefore(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, cutoff time.Time, excludeID *uuid.UUID) (Result, error) {
	result := Result{
		ContractID:     contractID,
		PriorNetAmount: decimal.Zero,
		ConfirmedPaid:  decimal.Zero,
		Outstanding:    decimal.Zero,
	}

	prior, err := r.repo.WithTx(tx).LatestBefore(ctx, contractID, cutoff, excludeID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior invoice")
	}
	if prior == nil {
		return result, nil
	}

	records, err := r.ledger.WithTx(tx).ListByInvoiceID(ctx, prior.ID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior invoice payments")
	}
	totals := ledger.Summarize(records)
	remainder := prior.NetAmount.Sub(totals.Confirmed)

	priorID := prior.ID
	result.PriorInvoiceID = &priorID
	result.PriorNetAmount = prior.NetAmount
	result.ConfirmedPaid = totals.Confirmed

	if remainder.IsNegative() {
		logCtx := r.logg.WithContractID(ctx, contractID.String())
		logCtx = r.logg.WithInvoiceID(logCtx, prior.ID.String())
		logCtx = r.logg.WithFields(logCtx, map[string]any{
			"net_amount": money.Format(prior.NetAmount),
			"confirmed":  money.Format(totals.Confirmed),
			"remainder":  money.Format(remainder),
		})
		fault := pkgerrors.Newf(pkgerrors.CodeDataIntegrity,
			"invoice %s has confirmed payments exceeding its net amount", prior.ID)
		r.logg.Error(logCtx, "negative carry-forward remainder", fault)
		r.metrics.IntegrityFault()
		return Result{}, fault
	}

	result.Outstanding = remainder
	return result, nil
}
