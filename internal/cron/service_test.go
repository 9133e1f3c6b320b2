package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/propertyledger-backend/pkg/lock"
	"github.com/angelmondragon/propertyledger-backend/pkg/logger"
	"github.com/angelmondragon/propertyledger-backend/pkg/metrics"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return registry
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, success, failure),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	if err := service.RunOnce(context.Background()); err == nil {
		t.Fatal("expected failed job to surface an error")
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job to run once, got success=%d fail=%d", success.runs, failure.runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	mutex := lock.NewLocal(time.Second)
	held, err := NewMutexLock(mutex, WorkerLockKey)
	if err != nil {
		t.Fatalf("NewMutexLock error: %v", err)
	}
	if ok, err := held.Acquire(ctx); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}

	contender, err := NewMutexLock(mutex, WorkerLockKey)
	if err != nil {
		t.Fatalf("NewMutexLock error: %v", err)
	}
	reg := prometheus.NewRegistry()
	job := &testJob{name: "penalty_sweep"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, job),
		Lock:     contender,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	if err := service.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected skipped cycle, job ran %d times", job.runs)
	}

	if err := held.Release(ctx); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := service.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected job to run once, got %d", job.runs)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	var skipped float64
	for _, family := range families {
		if family.GetName() == "cron_cycle_skipped_total" {
			skipped = family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if skipped != 1 {
		t.Fatalf("expected 1 skipped cycle, got %v", skipped)
	}
}

func TestMutexLockReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, err := NewMutexLock(lock.NewLocal(0), WorkerLockKey)
	if err != nil {
		t.Fatalf("NewMutexLock error: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release before acquire: %v", err)
	}

	if ok, err := l.Acquire(ctx); err != nil || !ok {
		t.Fatalf("Acquire = %v, %v", ok, err)
	}
	if ok, err := l.Acquire(ctx); err != nil || ok {
		t.Fatalf("second Acquire = %v, %v; want false", ok, err)
	}

	if err := l.Release(ctx); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("repeated Release error: %v", err)
	}

	if _, err := NewMutexLock(nil, WorkerLockKey); err == nil {
		t.Fatal("expected nil mutex to fail")
	}
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "tick"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: mustRegistry(t, job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := service.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected initial cycle to run, got %d runs", job.runs)
	}
}
