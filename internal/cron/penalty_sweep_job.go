package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

const defaultSweepBatchSize = 200

type penaltyApplier interface {
	ListOverdueCandidates(ctx context.Context, limit int) ([]models.Invoice, error)
	ApplyPenalty(ctx context.Context, id uuid.UUID) (*models.Invoice, bool, error)
}

// PenaltySweepJobParams configure the overdue penalty sweep.
type PenaltySweepJobParams struct {
	Logger    *logger.Logger
	Invoices  penaltyApplier
	BatchSize int
}

// PenaltySweepJob penalises overdue invoices in batches.
type PenaltySweepJob struct {
	logg      *logger.Logger
	invoices  penaltyApplier
	batchSize int
}

// SweepReport counts what one sweep did.
type SweepReport struct {
	Candidates int `json:"candidates"`
	Applied    int `json:"applied"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// NewPenaltySweepJob builds the job that penalises overdue invoices once.
func NewPenaltySweepJob(params PenaltySweepJobParams) (*PenaltySweepJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &PenaltySweepJob{logg: params.Logger, invoices: params.Invoices, batchSize: batch}, nil
}

func (j *PenaltySweepJob) Name() string { return "penalty_sweep" }

func (j *PenaltySweepJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep applies penalties to one batch of overdue candidates. Candidates
// that were paid or penalised since the listing are skipped; other failures
// are collected and do not stop the batch.
func (j *PenaltySweepJob) Sweep(ctx context.Context) (SweepReport, error) {
	candidates, err := j.invoices.ListOverdueCandidates(ctx, j.batchSize)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list overdue invoices: %w", err)
	}
	report := SweepReport{Candidates: len(candidates)}
	var errs error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		_, applied, err := j.invoices.ApplyPenalty(ctx, candidate.ID)
		switch {
		case err == nil && applied:
			report.Applied++
		case err == nil, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			report.Skipped++
		default:
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", candidate.ID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": report.Candidates,
		"applied":    report.Applied,
		"skipped":    report.Skipped,
		"failed":     report.Failed,
	}), "penalty sweep finished")
	return report, errs
}
