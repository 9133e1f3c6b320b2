package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/api/responses"
	"github.com/angelmondragon/propertyledger-backend/api/validators"
	"github.com/angelmondragon/propertyledger-backend/internal/payments"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

const paymentIDParam = "paymentId"

type addPaymentRequest struct {
	InvoiceID            string           `json:"invoice_id" validate:"required,uuid"`
	Amount               *decimal.Decimal `json:"payment_amount" validate:"required"`
	Method               string           `json:"payment_method" validate:"required"`
	PaymentDate          *time.Time       `json:"payment_date"`
	TransactionReference string           `json:"transaction_reference" validate:"max=128"`
	Notes                string           `json:"notes" validate:"max=1000"`
}

type updatePaymentRequest struct {
	Status string `json:"payment_status" validate:"required,oneof=pending confirmed rejected"`
}

type attachProofRequest struct {
	ProofType   string `json:"proof_type" validate:"required"`
	FileRef     string `json:"file_ref" validate:"required,max=1024"`
	UploadedBy  string `json:"uploaded_by" validate:"required,max=128"`
	Description string `json:"description" validate:"max=1000"`
}

type paymentResultResponse struct {
	Record  paymentRecordResponse `json:"record"`
	Summary payments.Summary      `json:"summary"`
}

type invoicePaymentsResponse struct {
	Summary *payments.Summary       `json:"summary"`
	Records []paymentRecordResponse `json:"records"`
}

func newPaymentResult(res *payments.Result) paymentResultResponse {
	return paymentResultResponse{Record: newPaymentRecordResponse(&res.Record), Summary: res.Summary}
}

// PaymentCreate records a payment against an invoice.
func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req addPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.Method)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		invoiceID, _ := uuid.Parse(req.InvoiceID)

		res, err := svc.AddPayment(ctx, payments.AddPaymentInput{
			InvoiceID:            invoiceID,
			Amount:               *req.Amount,
			Method:               method,
			PaymentDate:          req.PaymentDate,
			TransactionReference: req.TransactionReference,
			Notes:                req.Notes,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResult(res))
	}
}

// PaymentUpdateStatus moves a payment between pending, confirmed and rejected.
func PaymentUpdateStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, paymentIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParsePaymentStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}
		res, err := svc.UpdateStatus(ctx, id, status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPaymentResult(res))
	}
}

func PaymentDelete(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, paymentIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := svc.DeletePayment(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// InvoicePayments lists an invoice's ledger with its paid position.
func InvoicePayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, invoiceIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := svc.Summary(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		records, err := svc.ListByInvoice(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoicePaymentsResponse{Summary: summary, Records: newPaymentRecordList(records)})
	}
}

func PaymentProofCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, paymentIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req attachProofRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		proofType, err := enums.ParseProofType(req.ProofType)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid proof type"))
			return
		}
		proof, err := svc.AttachProof(ctx, payments.AttachProofInput{
			PaymentID:   id,
			ProofType:   proofType,
			FileRef:     req.FileRef,
			UploadedBy:  req.UploadedBy,
			Description: req.Description,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentProofResponse(proof))
	}
}

func PaymentProofList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := validators.ParseUUIDParam(r, paymentIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		proofs, err := svc.ListProofs(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]paymentProofResponse, 0, len(proofs))
		for i := range proofs {
			out = append(out, newPaymentProofResponse(&proofs[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
