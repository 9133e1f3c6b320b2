package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
)

// Invoice is one billing period of one contract.
//
// PreviousBalance is a snapshot taken at creation and never re-resolved.
// NetAmount = SubTotal + PenaltyTotal + PreviousBalance.
type Invoice struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ContractID       uuid.UUID           `gorm:"column:contract_id;type:uuid;not null;index:idx_invoices_contract_create_date,priority:1;uniqueIndex:idx_invoices_contract_period,priority:1"`
	CreateDate       time.Time           `gorm:"column:create_date;not null;index:idx_invoices_contract_create_date,priority:2"`
	BillingPeriod    string              `gorm:"column:billing_period;not null;uniqueIndex:idx_invoices_contract_period,priority:2"`
	DueDate          time.Time           `gorm:"column:due_date;not null"`
	Rent             decimal.Decimal     `gorm:"column:rent;type:numeric(12,2);not null"`
	WaterUnit        decimal.Decimal     `gorm:"column:water_unit;type:numeric(12,2);not null"`
	ElectricityUnit  decimal.Decimal     `gorm:"column:electricity_unit;type:numeric(12,2);not null"`
	WaterRate        decimal.Decimal     `gorm:"column:water_rate;type:numeric(12,4);not null"`
	ElectricityRate  decimal.Decimal     `gorm:"column:electricity_rate;type:numeric(12,4);not null"`
	AddonAmount      decimal.Decimal     `gorm:"column:addon_amount;type:numeric(12,2);not null"`
	WaterBill        decimal.Decimal     `gorm:"column:water_bill;type:numeric(12,2);not null"`
	ElectricityBill  decimal.Decimal     `gorm:"column:electricity_bill;type:numeric(12,2);not null"`
	SubTotal         decimal.Decimal     `gorm:"column:sub_total;type:numeric(12,2);not null"`
	PreviousBalance  decimal.Decimal     `gorm:"column:previous_balance;type:numeric(12,2);not null"`
	PenaltyTotal     decimal.Decimal     `gorm:"column:penalty_total;type:numeric(12,2);not null"`
	NetAmount        decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Status           enums.InvoiceStatus `gorm:"column:status;type:text;not null"`
	PayDate          *time.Time          `gorm:"column:pay_date"`
	PenaltyAppliedAt *time.Time          `gorm:"column:penalty_applied_at"`
	PenaltyWaivedAt  *time.Time          `gorm:"column:penalty_waived_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	CancelReason     *string             `gorm:"column:cancel_reason"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// Cancelled reports whether the invoice was soft-cancelled.
func (i Invoice) Cancelled() bool {
	return i.CancelledAt != nil
}
