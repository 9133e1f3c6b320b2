// Package ledger stores the payment records of each invoice and folds them
// into paid totals.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

// Totals aggregates one invoice's ledger by payment status.
type Totals struct {
	Confirmed decimal.Decimal `json:"confirmed"`
	Pending   decimal.Decimal `json:"pending"`
	Rejected  decimal.Decimal `json:"rejected"`
	Records   int             `json:"records"`
}

// Committed is the sum of funds that count against the invoice: confirmed
// plus pending records awaiting reconciliation.
func (t Totals) Committed() decimal.Decimal {
	return t.Confirmed.Add(t.Pending)
}

// Locked reports whether any pending or confirmed record exists.
func (t Totals) Locked() bool {
	return t.Committed().IsPositive()
}

// Remaining is what is still owed against confirmed payments, never negative.
func (t Totals) Remaining(netAmount decimal.Decimal) decimal.Decimal {
	return money.Max0(netAmount.Sub(t.Confirmed))
}

// Summarize folds records into per-status totals.
func Summarize(records []models.PaymentRecord) Totals {
	totals := Totals{
		Confirmed: decimal.Zero,
		Pending:   decimal.Zero,
		Rejected:  decimal.Zero,
	}
	for _, record := range records {
		totals.Records++
		switch record.PaymentStatus {
		case enums.PaymentStatusConfirmed:
			totals.Confirmed = totals.Confirmed.Add(record.PaymentAmount)
		case enums.PaymentStatusPending:
			totals.Pending = totals.Pending.Add(record.PaymentAmount)
		case enums.PaymentStatusRejected:
			totals.Rejected = totals.Rejected.Add(record.PaymentAmount)
		}
	}
	return totals
}
