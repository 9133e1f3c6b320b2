package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/propertyledger-backend/internal/rooms"
	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service anchors invoices to rooms and tenancy agreements.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Contract, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	FindActive(ctx context.Context, roomNumber string, start, end time.Time) (*models.Contract, error)
}

// RegisterInput creates a contract, creating the room on first use.
type RegisterInput struct {
	RoomNumber string
	RoomLabel  string
	TenantName string
	RentAmount decimal.Decimal
	StartDate  time.Time
	EndDate    *time.Time
}

type service struct {
	tx        txRunner
	rooms     rooms.Repository
	contracts Repository
	logg      *logger.Logger
}

// NewService wires the contract service.
func NewService(tx txRunner, roomRepo rooms.Repository, contractRepo Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if roomRepo == nil {
		return nil, fmt.Errorf("room repository required")
	}
	if contractRepo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, rooms: roomRepo, contracts: contractRepo, logg: logg}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Contract, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var created *models.Contract
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		roomRepo := s.rooms.WithTx(tx)
		room, err := roomRepo.FindByNumber(ctx, input.RoomNumber)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			room = &models.Room{Number: input.RoomNumber, Label: strings.TrimSpace(input.RoomLabel)}
			if err := roomRepo.Create(ctx, room); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create room")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load room")
		}

		contractRepo := s.contracts.WithTx(tx)
		existing, err := contractRepo.ListByRoom(ctx, room.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load room contracts")
		}
		candidate := models.Contract{StartDate: input.StartDate.UTC(), EndDate: utcPtr(input.EndDate)}
		for _, other := range existing {
			if overlaps(other, candidate) {
				return pkgerrors.New(pkgerrors.CodeConflict, "room already has a contract covering these dates").
					WithDetails(map[string]any{"contract_id": other.ID})
			}
		}

		contract := &models.Contract{
			RoomID:     room.ID,
			TenantName: strings.TrimSpace(input.TenantName),
			RentAmount: input.RentAmount,
			StartDate:  candidate.StartDate,
			EndDate:    candidate.EndDate,
		}
		if err := contractRepo.Create(ctx, contract); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contract")
		}
		created = contract
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithContractID(ctx, created.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "room_number", rooms.NormalizeNumber(input.RoomNumber)), "contract registered")
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := s.contracts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	return contract, nil
}

// FindActive resolves a room number to the contract covering [start, end).
// Unknown rooms and rooms without an active contract are both UNKNOWN_ROOM.
func (s *service) FindActive(ctx context.Context, roomNumber string, start, end time.Time) (*models.Contract, error) {
	number := rooms.NormalizeNumber(roomNumber)
	if number == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "room number is required")
	}
	room, err := s.rooms.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeUnknownRoom, "room %s does not exist", number)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load room")
	}
	contract, err := s.contracts.FindActiveForPeriod(ctx, room.ID, start, end)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeUnknownRoom, "room %s has no active contract for the period", number)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contract")
	}
	return contract, nil
}

func (in RegisterInput) validate() error {
	invalid := map[string]string{}
	if rooms.NormalizeNumber(in.RoomNumber) == "" {
		invalid["room_number"] = "is required"
	}
	if strings.TrimSpace(in.TenantName) == "" {
		invalid["tenant_name"] = "is required"
	}
	if in.RentAmount.IsNegative() {
		invalid["rent_amount"] = "must be non-negative"
	} else if !money.Fits(in.RentAmount, money.CentPlaces) {
		invalid["rent_amount"] = "must be whole cents within range"
	}
	if in.StartDate.IsZero() {
		invalid["start_date"] = "is required"
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		invalid["end_date"] = "must not be before start_date"
	}
	if len(invalid) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid contract").WithDetails(invalid)
	}
	return nil
}

func overlaps(a, b models.Contract) bool {
	aEndsBeforeB := a.EndDate != nil && a.EndDate.Before(b.StartDate)
	bEndsBeforeA := b.EndDate != nil && b.EndDate.Before(a.StartDate)
	return !aEndsBeforeB && !bEndsBeforeA
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
