package usageimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/balance"
	"github.com/angelmondragon/propertyledger-backend/internal/billing"
	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/internal/rooms"
	"github.com/angelmondragon/propertyledger-backend/pkg/db"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	conn     *gorm.DB
	importer *Importer
	invoices invoices.Service
}

func newFixture(t *testing.T, roomNumbers ...string) *fixture {
	t.Helper()
	conn := dbtest.OpenSQLite(t, &models.Room{}, &models.Contract{}, &models.Invoice{}, &models.PaymentRecord{}, &models.PaymentProof{})
	client := db.Wrap(conn)
	contractRepo := contracts.NewRepository(conn)
	contractSvc, err := contracts.NewService(client, rooms.NewRepository(conn), contractRepo, logger.Nop())
	require.NoError(t, err)

	for _, number := range roomNumbers {
		_, err := contractSvc.Register(context.Background(), contracts.RegisterInput{
			RoomNumber: number,
			TenantName: "Tenant " + number,
			RentAmount: d("4000"),
			StartDate:  time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}

	ledgerRepo := ledger.NewRepository(conn)
	resolver, err := balance.NewResolver(balance.NewRepository(conn), ledgerRepo, logger.Nop(), nil)
	require.NoError(t, err)
	invoiceSvc, err := invoices.NewService(invoices.ServiceParams{
		Tx:        client,
		Repo:      invoices.NewRepository(conn),
		Ledger:    ledgerRepo,
		Contracts: contractRepo,
		Resolver:  resolver,
		Locks:     lock.NewLocal(5 * time.Second),
		Logger:    logger.Nop(),
		Policy: invoices.Policy{
			Rates:       billing.Rates{Water: d("30"), Electricity: d("6.5")},
			PenaltyRate: billing.DefaultPenaltyRate,
			DueAfter:    5 * 24 * time.Hour,
		},
		Now: func() time.Time { return time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	importer, err := NewImporter(contractSvc, invoiceSvc, logger.Nop(), nil)
	require.NoError(t, err)
	return &fixture{conn: conn, importer: importer, invoices: invoiceSvc}
}

func TestImportBatchIsPartial(t *testing.T) {
	f := newFixture(t, "A101")

	result, err := f.importer.ImportBatch(context.Background(), []Row{
		{RoomNumber: "A101", WaterUsage: d("4"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
		{RoomNumber: "Z999", WaterUsage: d("1"), ElectricityUsage: d("1"), BillingMonth: "2026-01"},
		{RoomNumber: "A101", WaterUsage: d("-1"), ElectricityUsage: d("1"), BillingMonth: "2026-02"},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, 0, result.Applied[0].RowIndex)
	assert.Equal(t, ActionCreated, result.Applied[0].Action)

	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 1, result.Rejected[0].RowIndex)
	assert.Equal(t, pkgerrors.CodeUnknownRoom, result.Rejected[0].Code)
	assert.Equal(t, 2, result.Rejected[1].RowIndex)
	assert.Equal(t, pkgerrors.CodeValidation, result.Rejected[1].Code)

	inv, err := f.invoices.Get(context.Background(), result.Applied[0].InvoiceID)
	require.NoError(t, err)
	assert.True(t, inv.SubTotal.Equal(d("5459")), inv.SubTotal.String())
}

func TestImportBatchReportsZeroBasedRowIndexes(t *testing.T) {
	f := newFixture(t, "A101", "B202")
	ctx := context.Background()

	result, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "A101", WaterUsage: d("4"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
		{RoomNumber: "Z999", WaterUsage: d("1"), ElectricityUsage: d("1"), BillingMonth: "2026-01"},
		{RoomNumber: "B202", WaterUsage: d("2"), ElectricityUsage: d("10"), BillingMonth: "2026-01"},
	}, Options{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, []Rejection{{
		RowIndex:   1,
		RoomNumber: "Z999",
		Code:       pkgerrors.CodeUnknownRoom,
		Reason:     result.Rejected[0].Reason,
	}}, result.Rejected)
	require.Len(t, result.Applied, 2)
	assert.Equal(t, 0, result.Applied[0].RowIndex)
	assert.Equal(t, "A101", result.Applied[0].RoomNumber)
	assert.Equal(t, 2, result.Applied[1].RowIndex)
	assert.Equal(t, "B202", result.Applied[1].RoomNumber)

	for _, applied := range result.Applied {
		inv, err := f.invoices.Get(ctx, applied.InvoiceID)
		require.NoError(t, err)
		assert.Equal(t, "2026-01", inv.BillingPeriod)
	}
}

func TestImportBatchEditsExistingInvoiceUntilLocked(t *testing.T) {
	f := newFixture(t, "A101")
	ctx := context.Background()

	first, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "a101", WaterUsage: d("4"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Accepted)
	invoiceID := first.Applied[0].InvoiceID

	second, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "A101", WaterUsage: d("5"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, second.Accepted)
	assert.Equal(t, ActionUpdated, second.Applied[0].Action)
	assert.Equal(t, invoiceID, second.Applied[0].InvoiceID)

	require.NoError(t, f.conn.Create(&models.PaymentRecord{
		InvoiceID:     invoiceID,
		PaymentAmount: d("100"),
		PaymentMethod: enums.PaymentMethodCash,
		PaymentDate:   time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC),
		PaymentStatus: enums.PaymentStatusConfirmed,
	}).Error)

	// A row identical to the stored bill is still refused once payments exist.
	third, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "A101", WaterUsage: d("9"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
		{RoomNumber: "A101", WaterUsage: d("5"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, third.Accepted)
	require.Len(t, third.Rejected, 2)
	for _, rejected := range third.Rejected {
		assert.Equal(t, pkgerrors.CodeInvoiceLocked, rejected.Code)
	}

	inv, err := f.invoices.Get(ctx, invoiceID)
	require.NoError(t, err)
	assert.True(t, inv.WaterUnit.Equal(d("5")))
}

func TestImportBatchRefusesRateChangesOnExistingInvoice(t *testing.T) {
	f := newFixture(t, "A101")
	ctx := context.Background()

	first, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "A101", WaterUsage: d("4"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Accepted)
	invoiceID := first.Applied[0].InvoiceID

	changed, same := d("25"), d("30.00")
	result, err := f.importer.ImportBatch(ctx, []Row{
		{RoomNumber: "A101", WaterUsage: d("5"), ElectricityUsage: d("206"), BillingMonth: "2026-01", WaterRate: &changed},
		{RoomNumber: "A101", WaterUsage: d("6"), ElectricityUsage: d("206"), BillingMonth: "2026-01", WaterRate: &same},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 0, result.Rejected[0].RowIndex)
	assert.Equal(t, pkgerrors.CodeValidation, result.Rejected[0].Code)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, 1, result.Applied[0].RowIndex)

	inv, err := f.invoices.Get(ctx, invoiceID)
	require.NoError(t, err)
	assert.True(t, inv.WaterRate.Equal(d("30")), inv.WaterRate.String())
	assert.True(t, inv.WaterBill.Equal(d("180")), inv.WaterBill.String())
}

func TestImportBatchRejectsOverScaleValues(t *testing.T) {
	f := newFixture(t, "A101")

	rate := d("30.12345")
	result, err := f.importer.ImportBatch(context.Background(), []Row{
		{RoomNumber: "A101", WaterUsage: d("4.001"), ElectricityUsage: d("206"), BillingMonth: "2026-01"},
		{RoomNumber: "A101", WaterUsage: d("4"), ElectricityUsage: d("206"), BillingMonth: "2026-01", WaterRate: &rate},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	require.Len(t, result.Rejected, 2)
	for _, rejected := range result.Rejected {
		assert.Equal(t, pkgerrors.CodeValidation, rejected.Code)
	}
}

func TestImportBatchRejectsBadPeriodAndInactiveContract(t *testing.T) {
	f := newFixture(t, "A101")

	result, err := f.importer.ImportBatch(context.Background(), []Row{
		{RoomNumber: "A101", WaterUsage: d("1"), ElectricityUsage: d("1"), BillingMonth: "01/2026"},
		{RoomNumber: "A101", WaterUsage: d("1"), ElectricityUsage: d("1"), BillingMonth: "2025-10"},
	}, Options{})
	require.NoError(t, err)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, pkgerrors.CodeInvalidPeriod, result.Rejected[0].Code)
	assert.Equal(t, pkgerrors.CodeUnknownRoom, result.Rejected[1].Code)
}

func TestImportBatchParallelRooms(t *testing.T) {
	rooms := []string{"A101", "A102", "A103", "A104", "A105", "A106"}
	f := newFixture(t, rooms...)

	var rows []Row
	for _, number := range rooms {
		rows = append(rows, Row{RoomNumber: number, WaterUsage: d("2"), ElectricityUsage: d("10"), BillingMonth: "2026-01"})
	}
	result, err := f.importer.ImportBatch(context.Background(), rows, Options{Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, len(rooms), result.Accepted)
	assert.Empty(t, result.Rejected)
	for i, applied := range result.Applied {
		assert.Equal(t, i, applied.RowIndex)
	}
}

func TestImportBatchMaxRows(t *testing.T) {
	f := newFixture(t)
	_, err := f.importer.ImportBatch(context.Background(), make([]Row, 3), Options{MaxRows: 2})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t, "A101", "B202")
	input := strings.Join([]string{
		"roomNumber,WATERUSAGE,ElectricityUsage,BillingMonth,WaterRate",
		"A101,4,206,2026-01,",
		"B202,abc,10,2026-01,",
		"B202,3,10,2026-01,25",
		"",
	}, "\n")

	result, err := f.importer.ImportCSV(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Accepted)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, 1, result.Rejected[0].RowIndex)
	assert.Equal(t, "B202", result.Rejected[0].RoomNumber)
	assert.Equal(t, 0, result.Applied[0].RowIndex)
	assert.Equal(t, 2, result.Applied[1].RowIndex)

	inv, err := f.invoices.Get(context.Background(), result.Applied[1].InvoiceID)
	require.NoError(t, err)
	assert.True(t, inv.WaterRate.Equal(d("25")))
	assert.True(t, inv.WaterBill.Equal(d("75")))
}

func TestParseCSVHeader(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader(""))
	require.Error(t, err)

	_, _, err = ParseCSV(strings.NewReader("RoomNumber,WaterUsage\nA101,1\n"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	rows, rejections, err := ParseCSV(strings.NewReader("\ufeffRoom Number,Water_Usage,Electricity Usage,Billing Month\n a101 , 1.5 ,2,2026-03\n,,,\n"))
	require.NoError(t, err)
	assert.Empty(t, rejections)
	require.Len(t, rows, 1)
	assert.Equal(t, "a101", rows[0].RoomNumber)
	assert.True(t, rows[0].WaterUsage.Equal(d("1.5")))
	assert.Nil(t, rows[0].WaterRate)
}
