package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
)

// PaymentRecord is one payment event against exactly one invoice.
type PaymentRecord struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	InvoiceID            uuid.UUID           `gorm:"column:invoice_id;type:uuid;not null;index"`
	PaymentAmount        decimal.Decimal     `gorm:"column:payment_amount;type:numeric(12,2);not null"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentDate          time.Time           `gorm:"column:payment_date;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	TransactionReference *string             `gorm:"column:transaction_reference"`
	Notes                *string             `gorm:"column:notes"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
