package balance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
)

// Repository reads the invoice chain of a contract.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// LatestBefore returns the newest non-cancelled invoice of the contract
	// whose create_date is strictly before the cutoff, or nil when none exists.
	LatestBefore(ctx context.Context, contractID uuid.UUID, before time.Time, excludeID *uuid.UUID) (*models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a balance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) LatestBefore(ctx context.Context, contractID uuid.UUID, before time.Time, excludeID *uuid.UUID) (*models.Invoice, error) {
	query := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Where("cancelled_at IS NULL").
		Where("create_date < ?", before.UTC())
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var invoice models.Invoice
	err := query.Order("create_date DESC").Order("created_at DESC").First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
