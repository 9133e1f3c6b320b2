package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/propertyledger-backend/internal/invoices"
	"github.com/angelmondragon/propertyledger-backend/internal/ledger"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	"github.com/angelmondragon/propertyledger-backend/pkg/pagination"
)

// Amounts are rendered by shopspring/decimal as JSON strings so no precision
// is lost on the way to clients.

type invoiceResponse struct {
	ID               uuid.UUID           `json:"id"`
	ContractID       uuid.UUID           `json:"contract_id"`
	BillingPeriod    string              `json:"billing_period"`
	CreateDate       time.Time           `json:"create_date"`
	DueDate          time.Time           `json:"due_date"`
	Rent             decimal.Decimal     `json:"rent"`
	WaterUnit        decimal.Decimal     `json:"water_unit"`
	ElectricityUnit  decimal.Decimal     `json:"electricity_unit"`
	WaterRate        decimal.Decimal     `json:"water_rate"`
	ElectricityRate  decimal.Decimal     `json:"electricity_rate"`
	WaterBill        decimal.Decimal     `json:"water_bill"`
	ElectricityBill  decimal.Decimal     `json:"electricity_bill"`
	AddonAmount      decimal.Decimal     `json:"addon_amount"`
	SubTotal         decimal.Decimal     `json:"sub_total"`
	PenaltyTotal     decimal.Decimal     `json:"penalty_total"`
	PreviousBalance  decimal.Decimal     `json:"previous_balance"`
	NetAmount        decimal.Decimal     `json:"net_amount"`
	Status           enums.InvoiceStatus `json:"status"`
	PayDate          *time.Time          `json:"pay_date,omitempty"`
	PenaltyAppliedAt *time.Time          `json:"penalty_applied_at,omitempty"`
	PenaltyWaivedAt  *time.Time          `json:"penalty_waived_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason     *string             `json:"cancel_reason,omitempty"`
}

func newInvoiceResponse(inv *models.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               inv.ID,
		ContractID:       inv.ContractID,
		BillingPeriod:    inv.BillingPeriod,
		CreateDate:       inv.CreateDate,
		DueDate:          inv.DueDate,
		Rent:             inv.Rent,
		WaterUnit:        inv.WaterUnit,
		ElectricityUnit:  inv.ElectricityUnit,
		WaterRate:        inv.WaterRate,
		ElectricityRate:  inv.ElectricityRate,
		WaterBill:        inv.WaterBill,
		ElectricityBill:  inv.ElectricityBill,
		AddonAmount:      inv.AddonAmount,
		SubTotal:         inv.SubTotal,
		PenaltyTotal:     inv.PenaltyTotal,
		PreviousBalance:  inv.PreviousBalance,
		NetAmount:        inv.NetAmount,
		Status:           inv.Status,
		PayDate:          inv.PayDate,
		PenaltyAppliedAt: inv.PenaltyAppliedAt,
		PenaltyWaivedAt:  inv.PenaltyWaivedAt,
		CancelledAt:      inv.CancelledAt,
		CancelReason:     inv.CancelReason,
	}
}

type invoiceViewResponse struct {
	invoiceResponse
	State     enums.InvoiceView `json:"state"`
	Totals    ledger.Totals     `json:"totals"`
	Remaining decimal.Decimal   `json:"remaining"`
	Locked    bool              `json:"locked"`
}

func newInvoiceViewResponse(view *invoices.View) invoiceViewResponse {
	return invoiceViewResponse{
		invoiceResponse: newInvoiceResponse(&view.Invoice),
		State:           view.State,
		Totals:          view.Totals,
		Remaining:       view.Remaining,
		Locked:          view.Locked,
	}
}

func newInvoicePage(page pagination.Page[models.Invoice]) pagination.Page[invoiceResponse] {
	items := make([]invoiceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, newInvoiceResponse(&page.Items[i]))
	}
	return pagination.Page[invoiceResponse]{Items: items, NextCursor: page.NextCursor}
}

type paymentRecordResponse struct {
	ID                   uuid.UUID           `json:"id"`
	InvoiceID            uuid.UUID           `json:"invoice_id"`
	PaymentAmount        decimal.Decimal     `json:"payment_amount"`
	PaymentMethod        enums.PaymentMethod `json:"payment_method"`
	PaymentDate          time.Time           `json:"payment_date"`
	PaymentStatus        enums.PaymentStatus `json:"payment_status"`
	TransactionReference *string             `json:"transaction_reference,omitempty"`
	Notes                *string             `json:"notes,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

func newPaymentRecordResponse(rec *models.PaymentRecord) paymentRecordResponse {
	return paymentRecordResponse{
		ID:                   rec.ID,
		InvoiceID:            rec.InvoiceID,
		PaymentAmount:        rec.PaymentAmount,
		PaymentMethod:        rec.PaymentMethod,
		PaymentDate:          rec.PaymentDate,
		PaymentStatus:        rec.PaymentStatus,
		TransactionReference: rec.TransactionReference,
		Notes:                rec.Notes,
		CreatedAt:            rec.CreatedAt,
	}
}

func newPaymentRecordList(records []models.PaymentRecord) []paymentRecordResponse {
	out := make([]paymentRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, newPaymentRecordResponse(&records[i]))
	}
	return out
}

type paymentProofResponse struct {
	ID              uuid.UUID       `json:"id"`
	PaymentRecordID uuid.UUID       `json:"payment_record_id"`
	ProofType       enums.ProofType `json:"proof_type"`
	FileRef         string          `json:"file_ref"`
	UploadedBy      string          `json:"uploaded_by"`
	Description     *string         `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newPaymentProofResponse(p *models.PaymentProof) paymentProofResponse {
	return paymentProofResponse{
		ID:              p.ID,
		PaymentRecordID: p.PaymentRecordID,
		ProofType:       p.ProofType,
		FileRef:         p.FileRef,
		UploadedBy:      p.UploadedBy,
		Description:     p.Description,
		CreatedAt:       p.CreatedAt,
	}
}

type contractResponse struct {
	ID         uuid.UUID       `json:"id"`
	RoomID     uuid.UUID       `json:"room_id"`
	TenantName string          `json:"tenant_name"`
	RentAmount decimal.Decimal `json:"rent_amount"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
}

func newContractResponse(c *models.Contract) contractResponse {
	return contractResponse{
		ID:         c.ID,
		RoomID:     c.RoomID,
		TenantName: c.TenantName,
		RentAmount: c.RentAmount,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
	}
}
