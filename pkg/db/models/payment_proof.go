package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
)

// PaymentProof is an evidentiary attachment on a payment record.
type PaymentProof struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PaymentRecordID uuid.UUID       `gorm:"column:payment_record_id;type:uuid;not null;index"`
	ProofType       enums.ProofType `gorm:"column:proof_type;type:text;not null"`
	FileRef         string          `gorm:"column:file_ref;not null"`
	UploadedBy      string          `gorm:"column:uploaded_by;not null"`
	Description     *string         `gorm:"column:description"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (p *PaymentProof) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
