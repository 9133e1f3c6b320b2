package contracts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
)

// Repository persists tenancy contracts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	FindActiveForPeriod(ctx context.Context, roomID uuid.UUID, start, end time.Time) (*models.Contract, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Contract, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contract repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// FindActiveForPeriod returns the most recently started contract on the room
// that overlaps [start, end).
func (r *repository) FindActiveForPeriod(ctx context.Context, roomID uuid.UUID, start, end time.Time) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Where("start_date < ?", end.UTC()).
		Where("(end_date IS NULL OR end_date >= ?)", start.UTC()).
		Order("start_date DESC").
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Contract, error) {
	var contracts []models.Contract
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("start_date ASC").
		Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
