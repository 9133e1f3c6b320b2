package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/propertyledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/propertyledger-backend/pkg/errors"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
)

type fakeApplier struct {
	candidates []models.Invoice
	listErr    error
	outcomes   map[uuid.UUID]error
	already    map[uuid.UUID]bool
	calls      []uuid.UUID
	limit      int
}

func (f *fakeApplier) ListOverdueCandidates(_ context.Context, limit int) ([]models.Invoice, error) {
	f.limit = limit
	return f.candidates, f.listErr
}

func (f *fakeApplier) ApplyPenalty(_ context.Context, id uuid.UUID) (*models.Invoice, bool, error) {
	f.calls = append(f.calls, id)
	if err := f.outcomes[id]; err != nil {
		return nil, false, err
	}
	return &models.Invoice{ID: id}, !f.already[id], nil
}

func TestPenaltySweepAppliesSkipsAndCollectsFailures(t *testing.T) {
	applied, paid, already, broken, alsoBroken := uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()
	fake := &fakeApplier{
		candidates: []models.Invoice{{ID: applied}, {ID: paid}, {ID: already}, {ID: broken}, {ID: alsoBroken}},
		outcomes: map[uuid.UUID]error{
			paid:       pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not overdue"),
			broken:     pkgerrors.New(pkgerrors.CodeDependency, "lock wait exceeded"),
			alsoBroken: errors.New("boom"),
		},
		already: map[uuid.UUID]bool{already: true},
	}
	job, err := NewPenaltySweepJob(PenaltySweepJobParams{Logger: logger.Nop(), Invoices: fake, BatchSize: 50})
	if err != nil {
		t.Fatalf("NewPenaltySweepJob error: %v", err)
	}

	report, err := job.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected failures to be reported")
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Fatalf("expected 2 collected errors, got %d", n)
	}
	if want := (SweepReport{Candidates: 5, Applied: 1, Skipped: 2, Failed: 2}); report != want {
		t.Fatalf("report = %+v, want %+v", report, want)
	}
	if len(fake.calls) != 5 {
		t.Fatalf("expected every candidate to be tried, got %d calls", len(fake.calls))
	}
	if fake.limit != 50 {
		t.Fatalf("expected batch limit 50, got %d", fake.limit)
	}
}

func TestPenaltySweepListFailure(t *testing.T) {
	job, err := NewPenaltySweepJob(PenaltySweepJobParams{Logger: logger.Nop(), Invoices: &fakeApplier{listErr: errors.New("db down")}})
	if err != nil {
		t.Fatalf("NewPenaltySweepJob error: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list failure to fail the run")
	}
	if job.Name() != "penalty_sweep" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
}

func TestNewPenaltySweepJobValidates(t *testing.T) {
	if _, err := NewPenaltySweepJob(PenaltySweepJobParams{}); err == nil {
		t.Fatal("expected missing logger to fail")
	}
	if _, err := NewPenaltySweepJob(PenaltySweepJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing invoices to fail")
	}
}
