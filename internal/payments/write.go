package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/invoicestatus"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
)

// ledgerWrite is what a write sees while it holds the invoice.
type ledgerWrite struct {
	invoice  *models.Invoice
	records  []models.PaymentRecord
	totals   ledger.Totals
	invoices invoices.Repository
	ledger   ledger.Repository
	now      time.Time
}

// withInvoice takes the invoice lock, opens a transaction, row-locks the
// invoice and loads its ledger before handing control to fn.
func (s *service) withInvoice(ctx context.Context, invoiceID uuid.UUID, operation string, fn func(ctx context.Context, w *ledgerWrite) error) error {
	err := s.lockedWrite(ctx, invoiceID, fn)
	if err != nil {
		s.metrics.Rejected(operation, string(pkgerrors.CodeOf(err)))
	}
	return err
}

func (s *service) lockedWrite(ctx context.Context, invoiceID uuid.UUID, fn func(ctx context.Context, w *ledgerWrite) error) error {
	ctx = s.logg.WithInvoiceID(ctx, invoiceID.String())
	unlock, err := s.locks.Lock(ctx, lock.InvoiceKey(invoiceID))
	if err != nil {
		return err
	}
	defer unlock()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invoiceRepo := s.invoices.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)
		invoice, err := invoiceRepo.FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		records, err := ledgerRepo.ListByInvoiceID(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}
		return fn(ctx, &ledgerWrite{
			invoice:  invoice,
			records:  records,
			totals:   ledger.Summarize(records),
			invoices: invoiceRepo,
			ledger:   ledgerRepo,
			now:      s.now(),
		})
	})
}

func (w *ledgerWrite) record(paymentID uuid.UUID) (models.PaymentRecord, error) {
	for _, record := range w.records {
		if record.ID == paymentID {
			return record, nil
		}
	}
	return models.PaymentRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
}

// settle reloads the ledger after a write and promotes the invoice when
// confirmed payments now cover it. A complete invoice is never reverted here.
func (w *ledgerWrite) settle(ctx context.Context) (Summary, error) {
	records, err := w.ledger.ListByInvoiceID(ctx, w.invoice.ID)
	if err != nil {
		return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payments")
	}
	totals := ledger.Summarize(records)
	if invoicestatus.Promote(w.invoice, totals.Confirmed, w.now) {
		if err := w.invoices.Save(ctx, w.invoice); err != nil {
			return Summary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save invoice status")
		}
	}
	return summarize(w.invoice, totals), nil
}
