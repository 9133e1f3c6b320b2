package invoices

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/internal/billing"
	"github.com/angelmondragon/propertyledger-backend/internal/invoicestatus"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

// UpdateBillInput carries bill fields to replace; nil leaves a field as is.
// The rate fields may only restate the stored rates.
type UpdateBillInput struct {
	Rent            *decimal.Decimal
	WaterUnit       *decimal.Decimal
	ElectricityUnit *decimal.Decimal
	WaterRate       *decimal.Decimal
	ElectricityRate *decimal.Decimal
	AddonAmount     *decimal.Decimal
}

// Empty reports whether no field was supplied.
func (in UpdateBillInput) Empty() bool {
	return in.Rent == nil && in.WaterUnit == nil && in.ElectricityUnit == nil &&
		in.WaterRate == nil && in.ElectricityRate == nil && in.AddonAmount == nil
}

// UpdateBill recomputes the bill from edited inputs. Rates are fixed when the
// invoice is created; a rate that differs from the stored one is refused. Once
// a pending or confirmed payment exists the bill is frozen, even for an
// identical resubmission. An applied penalty follows the new subtotal.
func (s *service) UpdateBill(ctx context.Context, id uuid.UUID, input UpdateBillInput) (*models.Invoice, error) {
	return s.mutate(ctx, id, "update_bill", func(ctx context.Context, inv *models.Invoice, totals ledger.Totals) (bool, error) {
		if inv.Cancelled() {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices cannot be edited")
		}
		if err := checkRatesUnchanged(inv, input); err != nil {
			return false, err
		}
		if totals.Locked() {
			return false, pkgerrors.New(pkgerrors.CodeInvoiceLocked, "invoice has recorded payments and can no longer be edited").
				WithDetails(map[string]string{
					"committed": money.Format(totals.Committed()),
				})
		}
		bill := billing.BillInput{
			Rent:            pick(input.Rent, inv.Rent),
			WaterUnit:       pick(input.WaterUnit, inv.WaterUnit),
			WaterRate:       inv.WaterRate,
			ElectricityUnit: pick(input.ElectricityUnit, inv.ElectricityUnit),
			ElectricityRate: inv.ElectricityRate,
			AddonAmount:     pick(input.AddonAmount, inv.AddonAmount),
		}
		breakdown, err := billing.ComputeBill(bill)
		if err != nil {
			return false, err
		}
		if sameBill(inv, bill) {
			return false, nil
		}

		inv.Rent = bill.Rent
		inv.WaterUnit = bill.WaterUnit
		inv.ElectricityUnit = bill.ElectricityUnit
		inv.AddonAmount = bill.AddonAmount
		inv.WaterBill = breakdown.WaterBill
		inv.ElectricityBill = breakdown.ElectricityBill
		inv.SubTotal = breakdown.SubTotal
		if inv.PenaltyAppliedAt != nil && inv.PenaltyWaivedAt == nil {
			inv.PenaltyTotal = billing.PenaltyFor(breakdown.SubTotal, inv.PreviousBalance, s.policy.PenaltyRate)
		}
		inv.NetAmount = billing.NetAmount(breakdown.SubTotal, inv.PenaltyTotal, inv.PreviousBalance)
		invoicestatus.Promote(inv, totals.Confirmed, s.now())
		return true, nil
	})
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status enums.InvoiceStatus) (*models.Invoice, error) {
	return s.mutate(ctx, id, "set_status", func(_ context.Context, inv *models.Invoice, _ ledger.Totals) (bool, error) {
		return invoicestatus.Override(inv, status, s.now())
	})
}

func (s *service) RecomputeStatus(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	return s.mutate(ctx, id, "recompute_status", func(_ context.Context, inv *models.Invoice, totals ledger.Totals) (bool, error) {
		if inv.Cancelled() {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices have no status to recompute")
		}
		return invoicestatus.Derive(inv, totals.Confirmed, s.now()), nil
	})
}

// ApplyPenalty adds the one-time overdue surcharge. The boolean reports
// whether this call applied it; an already penalised or waived invoice is
// returned unchanged.
func (s *service) ApplyPenalty(ctx context.Context, id uuid.UUID) (*models.Invoice, bool, error) {
	applied := false
	inv, err := s.mutate(ctx, id, "apply_penalty", func(_ context.Context, inv *models.Invoice, totals ledger.Totals) (bool, error) {
		if inv.Cancelled() {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices cannot be penalised")
		}
		if inv.PenaltyAppliedAt != nil || inv.PenaltyWaivedAt != nil {
			return false, nil
		}
		now := s.now()
		if !invoicestatus.Overdue(inv, totals.Confirmed, now) {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not overdue").
				WithDetails(map[string]string{
					"due_date": inv.DueDate.Format("2006-01-02"),
					"status":   inv.Status.String(),
				})
		}
		penalty := billing.PenaltyFor(inv.SubTotal, inv.PreviousBalance, s.policy.PenaltyRate)
		inv.PenaltyTotal = penalty
		inv.NetAmount = billing.NetAmount(inv.SubTotal, penalty, inv.PreviousBalance)
		inv.PenaltyAppliedAt = &now
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.metrics.PenaltyApplied()
		s.logg.Info(s.logg.WithFields(s.logg.WithInvoiceID(ctx, inv.ID.String()), map[string]any{
			"penalty_total": money.Format(inv.PenaltyTotal),
			"net_amount":    money.Format(inv.NetAmount),
		}), "penalty applied")
	}
	return inv, applied, nil
}

// WaivePenalty removes an applied penalty, or pre-emptively blocks one, and
// the invoice is never penalised afterwards.
func (s *service) WaivePenalty(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	waived := false
	inv, err := s.mutate(ctx, id, "waive_penalty", func(_ context.Context, inv *models.Invoice, totals ledger.Totals) (bool, error) {
		if inv.Cancelled() {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices cannot be waived")
		}
		if inv.PenaltyWaivedAt != nil {
			return false, nil
		}
		net := billing.NetAmount(inv.SubTotal, decimal.Zero, inv.PreviousBalance)
		if totals.Committed().GreaterThan(net) {
			return false, pkgerrors.New(pkgerrors.CodeStateConflict, "recorded payments exceed the amount without penalty").
				WithDetails(map[string]string{
					"committed":  money.Format(totals.Committed()),
					"net_amount": money.Format(net),
				})
		}
		now := s.now()
		inv.PenaltyTotal = decimal.Zero
		inv.NetAmount = net
		inv.PenaltyWaivedAt = &now
		invoicestatus.Promote(inv, totals.Confirmed, now)
		waived = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if waived {
		s.metrics.PenaltyWaived()
	}
	return inv, nil
}

// Cancel soft-cancels an invoice. Invoices with pending or confirmed payments
// must have them rejected or deleted first.
func (s *service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error) {
	return s.mutate(ctx, id, "cancel_invoice", func(_ context.Context, inv *models.Invoice, totals ledger.Totals) (bool, error) {
		if inv.Cancelled() {
			return false, nil
		}
		if totals.Locked() {
			return false, pkgerrors.New(pkgerrors.CodeInvoiceLocked, "invoice has recorded payments and cannot be cancelled").
				WithDetails(map[string]string{
					"committed": money.Format(totals.Committed()),
				})
		}
		now := s.now()
		inv.CancelledAt = &now
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			inv.CancelReason = &trimmed
		}
		return true, nil
	})
}

func pick(value *decimal.Decimal, current decimal.Decimal) decimal.Decimal {
	if value == nil {
		return current
	}
	return *value
}

func checkRatesUnchanged(inv *models.Invoice, input UpdateBillInput) error {
	invalid := map[string]string{}
	if input.WaterRate != nil && !input.WaterRate.Equal(inv.WaterRate) {
		invalid["water_rate"] = "is fixed at " + inv.WaterRate.String()
	}
	if input.ElectricityRate != nil && !input.ElectricityRate.Equal(inv.ElectricityRate) {
		invalid["electricity_rate"] = "is fixed at " + inv.ElectricityRate.String()
	}
	if len(invalid) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "utility rates cannot change after the invoice is created").WithDetails(invalid)
	}
	return nil
}

func sameBill(inv *models.Invoice, bill billing.BillInput) bool {
	return inv.Rent.Equal(bill.Rent) &&
		inv.WaterUnit.Equal(bill.WaterUnit) &&
		inv.WaterRate.Equal(bill.WaterRate) &&
		inv.ElectricityUnit.Equal(bill.ElectricityUnit) &&
		inv.ElectricityRate.Equal(bill.ElectricityRate) &&
		inv.AddonAmount.Equal(bill.AddonAmount)
}
