package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Contract is a tenancy agreement for one room. RentAmount is copied onto
// each invoice at creation time.
type Contract struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	RoomID     uuid.UUID       `gorm:"column:room_id;type:uuid;not null;index"`
	TenantName string          `gorm:"column:tenant_name;not null"`
	RentAmount decimal.Decimal `gorm:"column:rent_amount;type:numeric(12,2);not null"`
	StartDate  time.Time       `gorm:"column:start_date;not null"`
	EndDate    *time.Time      `gorm:"column:end_date"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ActiveDuring reports whether the contract overlaps [start, end).
func (c Contract) ActiveDuring(start, end time.Time) bool {
	if !c.StartDate.Before(end) {
		return false
	}
	return c.EndDate == nil || !c.EndDate.Before(start)
}
