// Package payments appends to and corrects invoice ledgers. Every write is
// serialised per invoice so that concurrent payments can never overpay.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records and corrects payments.
type Service interface {
	AddPayment(ctx context.Context, input AddPaymentInput) (*Result, error)
	UpdateStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentStatus) (*Result, error)
	DeletePayment(ctx context.Context, paymentID uuid.UUID) (*Summary, error)
	Remaining(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	Summary(ctx context.Context, invoiceID uuid.UUID) (*Summary, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentRecord, error)
	AttachProof(ctx context.Context, input AttachProofInput) (*models.PaymentProof, error)
	ListProofs(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentProof, error)
}

// Summary is an invoice's paid position.
type Summary struct {
	InvoiceID uuid.UUID           `json:"invoice_id"`
	NetAmount decimal.Decimal     `json:"net_amount"`
	Confirmed decimal.Decimal     `json:"confirmed"`
	Pending   decimal.Decimal     `json:"pending"`
	Committed decimal.Decimal     `json:"committed"`
	Remaining decimal.Decimal     `json:"remaining"`
	Status    enums.InvoiceStatus `json:"status"`
	Records   int                 `json:"records"`
}

// Result is a ledger write and the invoice position after it.
type Result struct {
	Record  models.PaymentRecord `json:"record"`
	Summary Summary              `json:"summary"`
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Tx          txRunner
	Invoices    invoices.Repository
	Ledger      ledger.Repository
	Locks       lock.Mutex
	Logger      *logger.Logger
	Metrics     *metrics.BillingMetrics
	AutoConfirm bool
	Now         func() time.Time
}

type service struct {
	tx          txRunner
	invoices    invoices.Repository
	ledger      ledger.Repository
	locks       lock.Mutex
	logg        *logger.Logger
	metrics     *metrics.BillingMetrics
	autoConfirm bool
	now         func() time.Time
}

// NewService builds a payment service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Invoices == nil:
		return nil, fmt.Errorf("invoice repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.Locks == nil:
		return nil, fmt.Errorf("lock required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:          params.Tx,
		invoices:    params.Invoices,
		ledger:      params.Ledger,
		locks:       params.Locks,
		logg:        params.Logger,
		metrics:     params.Metrics,
		autoConfirm: params.AutoConfirm,
		now:         func() time.Time { return now().UTC() },
	}, nil
}

// AddPaymentInput describes a payment against one invoice.
type AddPaymentInput struct {
	InvoiceID            uuid.UUID
	Amount               decimal.Decimal
	Method               enums.PaymentMethod
	PaymentDate          *time.Time
	TransactionReference string
	Notes                string
}

func (s *service) AddPayment(ctx context.Context, input AddPaymentInput) (*Result, error) {
	if err := input.validate(); err != nil {
		s.metrics.Rejected("add_payment", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	status := enums.PaymentStatusPending
	if s.autoConfirm {
		status = enums.PaymentStatusConfirmed
	}
	paidAt := s.now()
	if input.PaymentDate != nil {
		paidAt = input.PaymentDate.UTC()
	}

	var result *Result
	err := s.withInvoice(ctx, input.InvoiceID, "add_payment", func(ctx context.Context, w *ledgerWrite) error {
		if w.invoice.Cancelled() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices do not accept payments")
		}
		if err := checkOverpayment(w.invoice, w.totals, input.Amount); err != nil {
			return err
		}
		record := &models.PaymentRecord{
			InvoiceID:            w.invoice.ID,
			PaymentAmount:        input.Amount,
			PaymentMethod:        input.Method,
			PaymentDate:          paidAt,
			PaymentStatus:        status,
			TransactionReference: optionalString(input.TransactionReference),
			Notes:                optionalString(input.Notes),
		}
		if err := w.ledger.Create(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment record")
		}
		summary, err := w.settle(ctx)
		if err != nil {
			return err
		}
		result = &Result{Record: *record, Summary: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentRecorded(input.Method.String(), status.String(), input.Amount)
	logCtx := s.logg.WithFields(s.logg.WithInvoiceID(ctx, input.InvoiceID.String()), map[string]any{
		"payment_id": result.Record.ID.String(),
		"amount":     money.Format(input.Amount),
		"status":     status.String(),
		"remaining":  money.Format(result.Summary.Remaining),
	})
	s.logg.Info(logCtx, "payment recorded")
	return result, nil
}

func (s *service) UpdateStatus(ctx context.Context, paymentID uuid.UUID, status enums.PaymentStatus) (*Result, error) {
	if !status.IsValid() {
		err := pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment status %q", status)
		s.metrics.Rejected("update_payment_status", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	invoiceID, err := s.invoiceOf(ctx, paymentID)
	if err != nil {
		s.metrics.Rejected("update_payment_status", string(pkgerrors.CodeOf(err)))
		return nil, err
	}

	var result *Result
	err = s.withInvoice(ctx, invoiceID, "update_payment_status", func(ctx context.Context, w *ledgerWrite) error {
		record, err := w.record(paymentID)
		if err != nil {
			return err
		}
		if record.PaymentStatus != status {
			// A rejected record coming back counts against the invoice again.
			if !record.PaymentStatus.Committed() && status.Committed() {
				if w.invoice.Cancelled() {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices do not accept payments")
				}
				if err := checkOverpayment(w.invoice, w.totals, record.PaymentAmount); err != nil {
					return err
				}
			}
			if err := w.ledger.UpdateStatus(ctx, record.ID, status); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
			}
			record.PaymentStatus = status
		}
		summary, err := w.settle(ctx)
		if err != nil {
			return err
		}
		result = &Result{Record: record, Summary: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithInvoiceID(ctx, invoiceID.String()), map[string]any{
		"payment_id": paymentID.String(),
		"status":     status.String(),
	}), "payment status updated")
	return result, nil
}

func (s *service) DeletePayment(ctx context.Context, paymentID uuid.UUID) (*Summary, error) {
	invoiceID, err := s.invoiceOf(ctx, paymentID)
	if err != nil {
		s.metrics.Rejected("delete_payment", string(pkgerrors.CodeOf(err)))
		return nil, err
	}
	var summary Summary
	err = s.withInvoice(ctx, invoiceID, "delete_payment", func(ctx context.Context, w *ledgerWrite) error {
		if _, err := w.record(paymentID); err != nil {
			return err
		}
		if err := w.ledger.Delete(ctx, paymentID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete payment record")
		}
		summary, err = w.settle(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logg.WithInvoiceID(ctx, invoiceID.String()), "payment_id", paymentID.String()), "payment deleted")
	return &summary, nil
}

func (s *service) Remaining(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	summary, err := s.Summary(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Remaining, nil
}

func (s *service) Summary(ctx context.Context, invoiceID uuid.UUID) (*Summary, error) {
	invoice, err := s.loadInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	summary := summarize(invoice, ledger.Summarize(records))
	return &summary, nil
}

func (s *service) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]models.PaymentRecord, error) {
	if _, err := s.loadInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	records, err := s.ledger.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
	}
	return records, nil
}

func (s *service) loadInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	return invoice, nil
}

// invoiceOf resolves the invoice a payment belongs to, so the invoice lock
// can be taken before the transaction starts.
func (s *service) invoiceOf(ctx context.Context, paymentID uuid.UUID) (uuid.UUID, error) {
	if paymentID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	record, err := s.ledger.FindByID(ctx, paymentID)
	if err != nil {
		return uuid.Nil, paymentNotFoundOr(err)
	}
	return record.InvoiceID, nil
}

func (in AddPaymentInput) validate() error {
	if in.InvoiceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	if !in.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be greater than zero").
			WithDetails(map[string]string{"payment_amount": in.Amount.String()})
	}
	if !money.Fits(in.Amount, money.CentPlaces) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be whole cents within range").
			WithDetails(map[string]string{"payment_amount": in.Amount.String()})
	}
	if !in.Method.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", in.Method)
	}
	return nil
}

// checkOverpayment refuses amounts that would push committed funds past the
// invoice's net amount.
func checkOverpayment(invoice *models.Invoice, totals ledger.Totals, amount decimal.Decimal) error {
	committed := totals.Committed()
	if committed.Add(amount).LessThanOrEqual(invoice.NetAmount) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeOverpayment, "payment exceeds the remaining balance").
		WithDetails(map[string]string{
			"remaining":    money.Format(money.Max0(invoice.NetAmount.Sub(committed))),
			"already_paid": money.Format(committed),
			"net_amount":   money.Format(invoice.NetAmount),
		})
}

func summarize(invoice *models.Invoice, totals ledger.Totals) Summary {
	return Summary{
		InvoiceID: invoice.ID,
		NetAmount: invoice.NetAmount,
		Confirmed: totals.Confirmed,
		Pending:   totals.Pending,
		Committed: totals.Committed(),
		Remaining: totals.Remaining(invoice.NetAmount),
		Status:    invoice.Status,
		Records:   totals.Records,
	}
}

func paymentNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment record not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment record")
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
