package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	conn    *gorm.DB
	reg     *prometheus.Registry
	now     time.Time
	invoice *models.Invoice
}

func newFixture(t *testing.T, autoConfirm bool) (*fixture, Service) {
	t.Helper()
	conn := dbtest.OpenSQLite(t, &models.Invoice{}, &models.PaymentRecord{}, &models.PaymentProof{})
	f := &fixture{conn: conn, reg: prometheus.NewRegistry(), now: time.Date(2026, time.January, 4, 10, 0, 0, 0, time.UTC)}
	f.invoice = &models.Invoice{
		ContractID:    uuid.New(),
		CreateDate:    time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		BillingPeriod: "2026-01",
		DueDate:       time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC),
		SubTotal:      d("5459"),
		NetAmount:     d("5459"),
		Status:        enums.InvoiceStatusIncomplete,
	}
	require.NoError(t, conn.Create(f.invoice).Error)

	svc, err := NewService(ServiceParams{
		Tx:          db.Wrap(conn),
		Invoices:    invoices.NewRepository(conn),
		Ledger:      ledger.NewRepository(conn),
		Locks:       lock.NewLocal(5 * time.Second),
		Logger:      logger.Nop(),
		Metrics:     metrics.NewBillingMetrics(f.reg),
		AutoConfirm: autoConfirm,
		Now:         func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f, svc
}

func (f *fixture) reload(t *testing.T) *models.Invoice {
	t.Helper()
	var inv models.Invoice
	require.NoError(t, f.conn.First(&inv, "id = ?", f.invoice.ID).Error)
	return &inv
}

func add(svc Service, invoiceID uuid.UUID, amount string) (*Result, error) {
	return svc.AddPayment(context.Background(), AddPaymentInput{
		InvoiceID: invoiceID,
		Amount:    d(amount),
		Method:    enums.PaymentMethodCash,
	})
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, pkgerrors.CodeOf(err), err.Error())
}

func TestAddPaymentValidation(t *testing.T) {
	f, svc := newFixture(t, false)

	_, err := add(svc, f.invoice.ID, "0")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = add(svc, f.invoice.ID, "-5")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = add(svc, f.invoice.ID, "0.001")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = add(svc, f.invoice.ID, "10000000000")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.AddPayment(context.Background(), AddPaymentInput{InvoiceID: f.invoice.ID, Amount: d("1"), Method: "barter"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = add(svc, uuid.New(), "1")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAddPaymentRejectsOverpaymentWithDetails(t *testing.T) {
	f, svc := newFixture(t, false)

	res, err := add(svc, f.invoice.ID, "5000")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, res.Record.PaymentStatus)
	assert.True(t, res.Summary.Committed.Equal(d("5000")))
	// Pending funds do not reduce the displayed remainder.
	assert.True(t, res.Summary.Remaining.Equal(d("5459")))

	_, err = add(svc, f.invoice.ID, "500")
	requireCode(t, err, pkgerrors.CodeOverpayment)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "459.00", details["remaining"])
	assert.Equal(t, "5000.00", details["already_paid"])
	assert.Equal(t, "5459.00", details["net_amount"])

	_, err = add(svc, f.invoice.ID, "459")
	require.NoError(t, err)

	assert.Equal(t, float64(1), counterValue(t, f.reg, "billing_rejections_total", map[string]string{"operation": "add_payment", "code": "OVERPAYMENT"}))
}

func TestAutoConfirmPromotesInvoice(t *testing.T) {
	f, svc := newFixture(t, true)

	res, err := add(svc, f.invoice.ID, "5459")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusConfirmed, res.Record.PaymentStatus)
	assert.True(t, res.Summary.Remaining.IsZero())
	assert.Equal(t, enums.InvoiceStatusComplete, res.Summary.Status)

	stored := f.reload(t)
	assert.Equal(t, enums.InvoiceStatusComplete, stored.Status)
	require.NotNil(t, stored.PayDate)
}

func TestUpdateStatusRechecksOverpaymentWhenLeavingRejected(t *testing.T) {
	f, svc := newFixture(t, false)
	ctx := context.Background()

	first, err := add(svc, f.invoice.ID, "3000")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, first.Record.ID, enums.PaymentStatusRejected)
	require.NoError(t, err)

	_, err = add(svc, f.invoice.ID, "3000")
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first.Record.ID, enums.PaymentStatusConfirmed)
	requireCode(t, err, pkgerrors.CodeOverpayment)

	record, err := ledger.NewRepository(f.conn).FindByID(ctx, first.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRejected, record.PaymentStatus)

	_, err = svc.UpdateStatus(ctx, first.Record.ID, enums.PaymentStatus("void"))
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.UpdateStatus(ctx, uuid.New(), enums.PaymentStatusConfirmed)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestConfirmingPromotesButLeavingConfirmedDoesNotRevert(t *testing.T) {
	f, svc := newFixture(t, false)
	ctx := context.Background()

	res, err := add(svc, f.invoice.ID, "5459")
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusIncomplete, f.reload(t).Status)

	confirmed, err := svc.UpdateStatus(ctx, res.Record.ID, enums.PaymentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusComplete, confirmed.Summary.Status)

	rejected, err := svc.UpdateStatus(ctx, res.Record.ID, enums.PaymentStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusComplete, rejected.Summary.Status)
	assert.True(t, rejected.Summary.Remaining.Equal(d("5459")))
}

func TestDeletePaymentReturnsFreshSummary(t *testing.T) {
	f, svc := newFixture(t, true)
	ctx := context.Background()

	res, err := add(svc, f.invoice.ID, "1000")
	require.NoError(t, err)
	_, err = svc.AttachProof(ctx, AttachProofInput{
		PaymentID:  res.Record.ID,
		ProofType:  enums.ProofTypeBankSlip,
		FileRef:    "slips/2026-01/a101.jpg",
		UploadedBy: "office",
	})
	require.NoError(t, err)

	summary, err := svc.DeletePayment(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.True(t, summary.Remaining.Equal(d("5459")))
	assert.Equal(t, 0, summary.Records)

	var proofs int64
	require.NoError(t, f.conn.Model(&models.PaymentProof{}).Count(&proofs).Error)
	assert.Zero(t, proofs)

	_, err = svc.DeletePayment(ctx, res.Record.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRemainingAndListing(t *testing.T) {
	f, svc := newFixture(t, true)
	ctx := context.Background()

	_, err := add(svc, f.invoice.ID, "1000")
	require.NoError(t, err)
	f.now = f.now.Add(time.Hour)
	_, err = add(svc, f.invoice.ID, "459")
	require.NoError(t, err)

	remaining, err := svc.Remaining(ctx, f.invoice.ID)
	require.NoError(t, err)
	assert.True(t, remaining.Equal(d("4000")))

	records, err := svc.ListByInvoice(ctx, f.invoice.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].PaymentAmount.Equal(d("1000")))
}

func TestCancelledInvoiceRejectsPayments(t *testing.T) {
	f, svc := newFixture(t, false)
	now := f.now
	require.NoError(t, f.conn.Model(f.invoice).Update("cancelled_at", now).Error)

	_, err := add(svc, f.invoice.ID, "1")
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestProofValidation(t *testing.T) {
	f, svc := newFixture(t, false)
	ctx := context.Background()
	res, err := add(svc, f.invoice.ID, "10")
	require.NoError(t, err)

	_, err = svc.AttachProof(ctx, AttachProofInput{PaymentID: res.Record.ID, ProofType: "selfie", FileRef: "x", UploadedBy: "y"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.AttachProof(ctx, AttachProofInput{PaymentID: res.Record.ID, ProofType: enums.ProofTypeReceipt})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = svc.AttachProof(ctx, AttachProofInput{PaymentID: uuid.New(), ProofType: enums.ProofTypeReceipt, FileRef: "x", UploadedBy: "y"})
	requireCode(t, err, pkgerrors.CodeNotFound)

	proof, err := svc.AttachProof(ctx, AttachProofInput{PaymentID: res.Record.ID, ProofType: enums.ProofTypeReceipt, FileRef: "r.pdf", UploadedBy: "office", Description: "  counter receipt "})
	require.NoError(t, err)
	require.NotNil(t, proof.Description)
	assert.Equal(t, "counter receipt", *proof.Description)

	proofs, err := svc.ListProofs(ctx, res.Record.ID)
	require.NoError(t, err)
	assert.Len(t, proofs, 1)
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	f, svc := newFixture(t, false)

	const attempts = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := add(svc, f.invoice.ID, "1000")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case pkgerrors.IsCode(err, pkgerrors.CodeOverpayment):
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	assert.Equal(t, attempts-5, refused)

	var records []models.PaymentRecord
	require.NoError(t, f.conn.Where("invoice_id = ?", f.invoice.ID).Find(&records).Error)
	assert.True(t, ledger.Summarize(records).Committed().LessThanOrEqual(f.invoice.NetAmount))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}
