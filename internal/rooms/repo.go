package rooms

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
)

// Repository persists rooms.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindByNumber(ctx context.Context, number string) (*models.Room, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a room repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, room *models.Room) error {
	room.Number = NormalizeNumber(room.Number)
	return r.db.WithContext(ctx).Create(room).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *repository) FindByNumber(ctx context.Context, number string) (*models.Room, error) {
	var room models.Room
	if err := r.db.WithContext(ctx).Where("number = ?", NormalizeNumber(number)).First(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

// NormalizeNumber canonicalises a room number for storage and lookup.
func NormalizeNumber(number string) string {
	return strings.ToUpper(strings.TrimSpace(number))
}
