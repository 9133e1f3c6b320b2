package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/api/responses"
	"github.com/angelmondragon/propertyledger-backend/api/validators"
	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

const invoiceIDParam = "invoiceId"

type createInvoiceRequest struct {
	ContractID      string           `json:"contract_id" validate:"required,uuid"`
	BillingPeriod   string           `json:"billing_period" validate:"required"`
	Rent            *decimal.Decimal `json:"rent"`
	WaterUnit       *decimal.Decimal `json:"water_unit" validate:"required"`
	ElectricityUnit *decimal.Decimal `json:"electricity_unit" validate:"required"`
	WaterRate       *decimal.Decimal `json:"water_rate"`
	ElectricityRate *decimal.Decimal `json:"electricity_rate"`
	AddonAmount     *decimal.Decimal `json:"addon_amount"`
}

// Rates are fixed when the invoice is created; the decoder rejects them here
// as unknown fields.
type updateBillRequest struct {
	Rent            *decimal.Decimal `json:"rent"`
	WaterUnit       *decimal.Decimal `json:"water_unit"`
	ElectricityUnit *decimal.Decimal `json:"electricity_unit"`
	AddonAmount     *decimal.Decimal `json:"addon_amount"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=incomplete complete"`
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type penaltyResponse struct {
	Invoice invoiceResponse `json:"invoice"`
	Applied bool            `json:"applied"`
}

// InvoiceCreate bills one contract for one period.
func InvoiceCreate(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req createInvoiceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contractID, _ := uuid.Parse(req.ContractID)

		addon := decimal.Zero
		if req.AddonAmount != nil {
			addon = *req.AddonAmount
		}
		inv, err := svc.Create(ctx, invoices.CreateInput{
			ContractID:      contractID,
			BillingPeriod:   req.BillingPeriod,
			Rent:            req.Rent,
			WaterUnit:       *req.WaterUnit,
			ElectricityUnit: *req.ElectricityUnit,
			WaterRate:       req.WaterRate,
			ElectricityRate: req.ElectricityRate,
			AddonAmount:     addon,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceResponse(inv))
	}
}

// InvoiceList pages invoices newest first.
func InvoiceList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		pageParams, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contractID, err := validators.ParseQueryUUID(r, "contract_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := validators.ParseQueryInvoiceStatus(r, "status")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params := invoices.ListParams{
			ContractID:       contractID,
			BillingPeriod:    strings.TrimSpace(r.URL.Query().Get("billing_period")),
			Status:           status,
			IncludeCancelled: validators.ParseQueryBool(r, "include_cancelled"),
			Params:           pageParams,
		}

		page, err := svc.List(ctx, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoicePage(page))
	}
}

// InvoiceGet returns an invoice with its ledger totals and derived state.
func InvoiceGet(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.View(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceViewResponse(view))
	}
}

// InvoiceUpdateBill edits usage, rent or add-ons while no payment is
// committed.
func InvoiceUpdateBill(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updateBillRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input := invoices.UpdateBillInput{
			Rent:            req.Rent,
			WaterUnit:       req.WaterUnit,
			ElectricityUnit: req.ElectricityUnit,
			AddonAmount:     req.AddonAmount,
		}
		if input.Empty() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "at least one field must be provided"))
			return
		}
		inv, err := svc.UpdateBill(ctx, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceResponse(inv))
	}
}

// InvoiceSetStatus is the manual status override.
func InvoiceSetStatus(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req setStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseInvoiceStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}
		inv, err := svc.SetStatus(ctx, id, status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceResponse(inv))
	}
}

// InvoiceRecompute re-derives the stored status from the ledger.
func InvoiceRecompute(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceAction(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		inv, err := svc.RecomputeStatus(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return newInvoiceResponse(inv), nil
	})
}

// InvoiceApplyPenalty applies the one-time overdue surcharge.
func InvoiceApplyPenalty(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceAction(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		inv, applied, err := svc.ApplyPenalty(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return penaltyResponse{Invoice: newInvoiceResponse(inv), Applied: applied}, nil
	})
}

func InvoiceWaivePenalty(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return invoiceAction(logg, func(r *http.Request, id uuid.UUID) (any, error) {
		inv, err := svc.WaivePenalty(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return newInvoiceResponse(inv), nil
	})
}

// InvoiceCancel soft-cancels an invoice that has no committed payments.
func InvoiceCancel(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req cancelInvoiceRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		inv, err := svc.Cancel(ctx, id, req.Reason)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInvoiceResponse(inv))
	}
}

func invoiceAction(logg *logger.Logger, fn func(r *http.Request, id uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := fn(r, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}
