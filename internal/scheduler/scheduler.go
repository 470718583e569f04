// Package scheduler runs the periodic member reconciliation.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
)

// DefaultSchedule runs reconciliation at 00:15 on the 1st of every month.
const DefaultSchedule = "0 15 0 1 * *"

// RunTimeout bounds a single reconciliation pass.
const RunTimeout = 5 * time.Minute

// Reconciler recomputes member skip counts and statuses.
type Reconciler interface {
	Reconcile(ctx context.Context) (*ledger.ReconcileResult, error)
}

// Scheduler triggers reconciliation on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a scheduler with seconds-precision specs evaluated in loc.
// Runs never overlap and a panicking run is recovered and logged.
func New(reconciler Reconciler, schedule string, loc *time.Location) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if loc == nil {
		loc = time.UTC
	}

	cronLogger := cron.PrintfLogger(logger.Printf{})
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithSeconds(),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       c,
		reconciler: reconciler,
		ctx:        ctx,
		cancel:     cancel,
	}

	if _, err := c.AddFunc(schedule, s.RunOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register reconciliation job %q: %w", schedule, err)
	}

	logger.Log.Info().Str("schedule", schedule).Str("timezone", loc.String()).Msg("Registered reconciliation job")
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels a running pass and returns a context done when it has finished.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}

// Next returns when the reconciliation job will next run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce performs one reconciliation pass and logs its outcome.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, RunTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Scheduled reconciliation failed")
		return
	}

	logger.Log.Info().
		Int("checked", result.Checked).
		Int("updated", result.Updated).
		Int("suspended", result.Suspended).
		Int("reactivated", result.Reactivated).
		Int("conflicts", result.Conflicts).
		Dur("took", time.Since(start)).
		Msg("Scheduled reconciliation finished")
}
