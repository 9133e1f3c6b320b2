package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Room is a rentable unit addressed by its public room number.
type Room struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Number    string    `gorm:"column:number;not null;uniqueIndex"`
	Label     string    `gorm:"column:label"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
