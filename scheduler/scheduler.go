// Package scheduler drives recurring reconciliation batches.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/aluiziolira/go-price-tracker/models"
)

// DefaultSchedule runs a batch every six hours.
const DefaultSchedule = "0 */6 * * *"

// BatchRunner is the slice of the reconciliation engine the scheduler
// drives.
type BatchRunner interface {
	ReconcileAll(ctx context.Context) (models.BatchResult, error)
}

// Scheduler owns the recurring reconciliation job. Start and Stop are
// idempotent. TriggerNow runs a batch in either state without touching
// the schedule.
type Scheduler struct {
	runner BatchRunner

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	expr    string
}

func New(runner BatchRunner) *Scheduler {
	return &Scheduler{runner: runner}
}

// Start schedules recurring batches using a standard five-field cron
// expression; empty means DefaultSchedule. Starting a running scheduler
// is a logged no-op and never creates a second job.
func (s *Scheduler) Start(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Info("scheduler already running", slog.String("cron", s.expr))
		return nil
	}

	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(s.runBatch))
	c.Start()

	s.cron = c
	s.running = true
	s.expr = expr
	slog.Info("scheduler started", slog.String("cron", expr))
	return nil
}

// Stop halts future scheduled runs. An in-flight batch keeps running to
// completion. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cron.Stop()
	s.cron = nil
	s.running = false
	slog.Info("scheduler stopped", slog.String("cron", s.expr))
}

// IsRunning reports whether a recurring job is scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Schedule returns the active cron expression, or "" when stopped.
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ""
	}
	return s.expr
}

// TriggerNow runs one batch immediately, independent of the recurring
// schedule and of the Running/Stopped state.
func (s *Scheduler) TriggerNow(ctx context.Context) (models.BatchResult, error) {
	return s.runner.ReconcileAll(ctx)
}

func (s *Scheduler) runBatch() {
	if _, err := s.runner.ReconcileAll(context.Background()); err != nil {
		slog.Error("scheduled reconcile failed", slog.Any("error", err))
	}
}
