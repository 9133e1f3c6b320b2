package invoices

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	"github.com/angelmondragon/propertyledger-backend/pkg/enums"
	"github.com/angelmondragon/propertyledger-backend/pkg/pagination"
)

// ListFilter narrows invoice listings.
type ListFilter struct {
	ContractID       *uuid.UUID
	Status           *enums.InvoiceStatus
	BillingPeriod    string
	IncludeCancelled bool
	Cursor           *pagination.Cursor
	Limit            int
}

// Repository persists invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invoice *models.Invoice) error
	Save(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// FindByIDForUpdate row-locks the invoice where the dialect supports it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	// FindByContractPeriod returns nil when the period has no invoice yet.
	FindByContractPeriod(ctx context.Context, contractID uuid.UUID, period string) (*models.Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]models.Invoice, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invoice repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) Save(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindByContractPeriod(ctx context.Context, contractID uuid.UUID, period string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND billing_period = ?", contractID, period).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Invoice, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.ContractID != nil {
		query = query.Where("contract_id = ?", *filter.ContractID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.BillingPeriod != "" {
		query = query.Where("billing_period = ?", filter.BillingPeriod)
	}
	if !filter.IncludeCancelled {
		query = query.Where("cancelled_at IS NULL")
	}
	if filter.Cursor != nil {
		at := filter.Cursor.At.UTC()
		query = query.Where("((create_date < ?) OR (create_date = ? AND id < ?))", at, at, filter.Cursor.ID)
	}

	var invoices []models.Invoice
	if err := query.
		Order("create_date DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]models.Invoice, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	var invoices []models.Invoice
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.InvoiceStatusIncomplete).
		Where("cancelled_at IS NULL").
		Where("penalty_applied_at IS NULL").
		Where("penalty_waived_at IS NULL").
		Where("due_date < ?", now.UTC()).
		Order("due_date ASC").
		Order("id ASC").
		Limit(limit).
		Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
