// Package invoicestatus derives an invoice's stored status from its ledger
// and projects the read-time view. Overdue and cancelled are never stored.
package invoicestatus

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	"github.com/angelmondragon/propertyledger-backend/pkg/errors"
)

// Settled reports whether confirmed payments cover the net amount.
func Settled(inv *models.Invoice, confirmed decimal.Decimal) bool {
	return confirmed.GreaterThanOrEqual(inv.NetAmount)
}

// Promote is the automatic transition run after every ledger change. It only
// moves incomplete -> complete; a complete invoice is never reverted here.
func Promote(inv *models.Invoice, confirmed decimal.Decimal, now time.Time) bool {
	if inv.Cancelled() || inv.Status == enums.InvoiceStatusComplete {
		return false
	}
	if !Settled(inv, confirmed) {
		return false
	}
	markComplete(inv, now)
	return true
}

// Derive recomputes the status purely from the ledger, in both directions.
// It backs the explicit recompute action.
func Derive(inv *models.Invoice, confirmed decimal.Decimal, now time.Time) bool {
	if inv.Cancelled() {
		return false
	}
	if Settled(inv, confirmed) {
		if inv.Status == enums.InvoiceStatusComplete && inv.PayDate != nil {
			return false
		}
		markComplete(inv, now)
		return true
	}
	if inv.Status == enums.InvoiceStatusIncomplete && inv.PayDate == nil {
		return false
	}
	markIncomplete(inv)
	return true
}

// Override applies a manual status correction.
func Override(inv *models.Invoice, status enums.InvoiceStatus, now time.Time) (bool, error) {
	if !status.IsValid() {
		return false, errors.Newf(errors.CodeValidation, "invalid invoice status %q", status)
	}
	if inv.Cancelled() {
		return false, errors.New(errors.CodeStateConflict, "cancelled invoices cannot change status")
	}
	switch status {
	case enums.InvoiceStatusComplete:
		if inv.Status == status && inv.PayDate != nil {
			return false, nil
		}
		markComplete(inv, now)
	case enums.InvoiceStatusIncomplete:
		if inv.Status == status && inv.PayDate == nil {
			return false, nil
		}
		markIncomplete(inv)
	}
	return true, nil
}

// Overdue reports whether the due date has passed without confirmed payments
// covering the net amount.
func Overdue(inv *models.Invoice, confirmed decimal.Decimal, now time.Time) bool {
	if inv.Cancelled() || inv.Status == enums.InvoiceStatusComplete {
		return false
	}
	if !now.After(inv.DueDate) {
		return false
	}
	return !Settled(inv, confirmed)
}

// Project returns the read-time view of an invoice.
func Project(inv *models.Invoice, confirmed decimal.Decimal, now time.Time) enums.InvoiceView {
	switch {
	case inv.Cancelled():
		return enums.InvoiceViewCancelled
	case inv.Status == enums.InvoiceStatusComplete:
		return enums.InvoiceViewComplete
	case Overdue(inv, confirmed, now):
		return enums.InvoiceViewOverdue
	default:
		return enums.InvoiceViewIncomplete
	}
}

func markComplete(inv *models.Invoice, now time.Time) {
	inv.Status = enums.InvoiceStatusComplete
	if inv.PayDate == nil {
		paid := now.UTC()
		inv.PayDate = &paid
	}
}

func markIncomplete(inv *models.Invoice) {
	inv.Status = enums.InvoiceStatusIncomplete
	inv.PayDate = nil
}
