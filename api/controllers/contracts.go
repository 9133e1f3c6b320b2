package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/api/responses"
	"github.com/angelmondragon/propertyledger-backend/api/validators"
	"github.com/angelmondragon/propertyledger-backend/internal/balance"
	"github.com/angelmondragon/propertyledger-backend/internal/contracts"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

const (
	contractIDParam = "contractId"
	dateLayout      = "2006-01-02"
)

type registerContractRequest struct {
	RoomNumber string           `json:"room_number" validate:"required,max=32"`
	RoomLabel  string           `json:"room_label" validate:"max=128"`
	TenantName string           `json:"tenant_name" validate:"required,max=256"`
	RentAmount *decimal.Decimal `json:"rent_amount" validate:"required"`
	StartDate  string           `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string           `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// ContractRegister creates a contract, creating its room on first use.
func ContractRegister(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req registerContractRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// Layout already checked by the datetime tag.
		start, _ := time.Parse(dateLayout, req.StartDate)
		var end *time.Time
		if req.EndDate != "" {
			parsed, _ := time.Parse(dateLayout, req.EndDate)
			end = &parsed
		}

		contract, err := svc.Register(ctx, contracts.RegisterInput{
			RoomNumber: req.RoomNumber,
			RoomLabel:  req.RoomLabel,
			TenantName: req.TenantName,
			RentAmount: *req.RentAmount,
			StartDate:  start,
			EndDate:    end,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newContractResponse(contract))
	}
}

func ContractGet(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, contractIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contract, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newContractResponse(contract))
	}
}

// ContractOutstandingBalance reports the carry-forward a new invoice would
// pick up. With as_of it reports the balance carried into that invoice.
func ContractOutstandingBalance(svc contracts.Service, resolver balance.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, contractIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		asOf, err := validators.ParseQueryUUID(r, "as_of")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if _, err := svc.Get(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := resolver.Resolve(ctx, id, asOf)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
