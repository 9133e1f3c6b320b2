// Package usageimport applies monthly meter readings to invoices. Each row
// either edits the (contract, month) invoice or creates it; rows succeed or
// fail independently.
package usageimport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

const (
	ActionCreated = "created"
	ActionUpdated = "updated"

	outcomeAccepted = "accepted"
)

// Row is one meter reading. Index is the 0-based position of the data row.
// Nil rates fall back to the standard tariff on creation and keep the
// invoice's rates on edits; a rate that differs from a stored invoice's is
// rejected.
type Row struct {
	Index            int
	RoomNumber       string
	WaterUsage       decimal.Decimal
	ElectricityUsage decimal.Decimal
	BillingMonth     string
	WaterRate        *decimal.Decimal
	ElectricityRate  *decimal.Decimal
}

// Rejection explains why a row was not applied.
type Rejection struct {
	RowIndex   int            `json:"row_index"`
	RoomNumber string         `json:"room_number,omitempty"`
	Code       pkgerrors.Code `json:"code"`
	Reason     string         `json:"reason"`
}

// Applied records the invoice a row landed on.
type Applied struct {
	RowIndex   int       `json:"row_index"`
	RoomNumber string    `json:"room_number"`
	InvoiceID  uuid.UUID `json:"invoice_id"`
	Action     string    `json:"action"`
}

// BatchResult summarises an import.
type BatchResult struct {
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
	Applied  []Applied   `json:"applied"`
}

// Options tunes a batch run.
type Options struct {
	// Concurrency bounds how many rows run at once; rows for the same
	// invoice still serialise on its lock.
	Concurrency int
	MaxRows     int
}

type contractFinder interface {
	FindActive(ctx context.Context, roomNumber string, start, end time.Time) (*models.Contract, error)
}

type invoiceWriter interface {
	Create(ctx context.Context, input invoices.CreateInput) (*models.Invoice, error)
	FindByPeriod(ctx context.Context, contractID uuid.UUID, period string) (*models.Invoice, error)
	UpdateBill(ctx context.Context, id uuid.UUID, input invoices.UpdateBillInput) (*models.Invoice, error)
}

// Importer applies usage rows through the regular invoice lifecycle.
type Importer struct {
	contracts contractFinder
	invoices  invoiceWriter
	logg      *logger.Logger
	metrics   *metrics.BillingMetrics
}

// NewImporter wires an importer. billingMetrics may be nil.
func NewImporter(contracts contractFinder, invoiceSvc invoiceWriter, logg *logger.Logger, billingMetrics *metrics.BillingMetrics) (*Importer, error) {
	if contracts == nil {
		return nil, fmt.Errorf("contract service required")
	}
	if invoiceSvc == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Importer{contracts: contracts, invoices: invoiceSvc, logg: logg, metrics: billingMetrics}, nil
}

type rowOutcome struct {
	applied  *Applied
	rejected *Rejection
}

// ImportBatch applies every row and reports per-row outcomes keyed by each
// row's position in rows. Only context cancellation aborts the batch.
func (i *Importer) ImportBatch(ctx context.Context, rows []Row, opts Options) (BatchResult, error) {
	indexed := make([]Row, len(rows))
	for idx, row := range rows {
		row.Index = idx
		indexed[idx] = row
	}
	return i.importRows(ctx, indexed, opts)
}

func (i *Importer) importRows(ctx context.Context, rows []Row, opts Options) (BatchResult, error) {
	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		return BatchResult{}, pkgerrors.Newf(pkgerrors.CodeValidation, "batch has %d rows, limit is %d", len(rows), opts.MaxRows)
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	outcomes := make([]rowOutcome, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for idx := range rows {
		idx := idx
		row := rows[idx]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[idx] = i.apply(gctx, row)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Rejected: []Rejection{}, Applied: []Applied{}}
	for _, outcome := range outcomes {
		switch {
		case outcome.applied != nil:
			result.Accepted++
			result.Applied = append(result.Applied, *outcome.applied)
		case outcome.rejected != nil:
			result.Rejected = append(result.Rejected, *outcome.rejected)
		}
	}

	i.logg.Info(i.logg.WithFields(ctx, map[string]any{
		"rows":     len(rows),
		"accepted": result.Accepted,
		"rejected": len(result.Rejected),
	}), "usage import finished")
	return result, nil
}

func (i *Importer) apply(ctx context.Context, row Row) rowOutcome {
	applied, err := i.applyRow(ctx, row)
	if err != nil {
		code := pkgerrors.CodeOf(err)
		i.metrics.ImportRow(string(code))
		if code == pkgerrors.CodeInternal || code == pkgerrors.CodeDependency {
			i.logg.Error(i.logg.WithField(ctx, "row_index", row.Index), "usage row failed", err)
		}
		return rowOutcome{rejected: &Rejection{
			RowIndex:   row.Index,
			RoomNumber: row.RoomNumber,
			Code:       code,
			Reason:     reason(err),
		}}
	}
	i.metrics.ImportRow(outcomeAccepted)
	return rowOutcome{applied: applied}
}

func (i *Importer) applyRow(ctx context.Context, row Row) (*Applied, error) {
	if err := row.validate(); err != nil {
		return nil, err
	}
	period, err := invoices.ParsePeriod(row.BillingMonth)
	if err != nil {
		return nil, err
	}
	contract, err := i.contracts.FindActive(ctx, row.RoomNumber, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	existing, err := i.invoices.FindByPeriod(ctx, contract.ID, period.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		created, err := i.invoices.Create(ctx, invoices.CreateInput{
			ContractID:      contract.ID,
			BillingPeriod:   period.Key,
			WaterUnit:       row.WaterUsage,
			ElectricityUnit: row.ElectricityUsage,
			WaterRate:       row.WaterRate,
			ElectricityRate: row.ElectricityRate,
			AddonAmount:     decimal.Zero,
		})
		if err == nil {
			return &Applied{RowIndex: row.Index, RoomNumber: row.RoomNumber, InvoiceID: created.ID, Action: ActionCreated}, nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, err
		}
		// Another writer created the month first; fall through to an edit.
		existing, err = i.invoices.FindByPeriod(ctx, contract.ID, period.Key)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "invoice creation conflicted; retry the row")
		}
	}

	water, electricity := row.WaterUsage, row.ElectricityUsage
	updated, err := i.invoices.UpdateBill(ctx, existing.ID, invoices.UpdateBillInput{
		WaterUnit:       &water,
		ElectricityUnit: &electricity,
		WaterRate:       row.WaterRate,
		ElectricityRate: row.ElectricityRate,
	})
	if err != nil {
		return nil, err
	}
	return &Applied{RowIndex: row.Index, RoomNumber: row.RoomNumber, InvoiceID: updated.ID, Action: ActionUpdated}, nil
}

func (r Row) validate() error {
	type check struct {
		value  decimal.Decimal
		places int32
	}
	fields := map[string]check{
		"water_usage":       {r.WaterUsage, money.CentPlaces},
		"electricity_usage": {r.ElectricityUsage, money.CentPlaces},
	}
	if r.WaterRate != nil {
		fields["water_rate"] = check{*r.WaterRate, money.RatePlaces}
	}
	if r.ElectricityRate != nil {
		fields["electricity_rate"] = check{*r.ElectricityRate, money.RatePlaces}
	}
	invalid := map[string]string{}
	for name, f := range fields {
		switch {
		case f.value.IsNegative():
			invalid[name] = "must not be negative"
		case !money.Fits(f.value, f.places):
			invalid[name] = fmt.Sprintf("must have at most %d decimal places", f.places)
		}
	}
	if len(invalid) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid usage values").WithDetails(invalid)
	}
	return nil
}

func reason(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
