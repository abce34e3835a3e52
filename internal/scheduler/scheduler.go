// Copyright 2025 James Ross
// Package scheduler runs the periodic maintenance jobs from spec.md §4.8:
// resetting stuck executions, cleaning up old terminal rows, and emitting
// per-status health counters.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/domain"
	"github.com/videoforge/engine/internal/obs"
	"github.com/videoforge/engine/internal/store"
)

type Scheduler struct {
	cfg   *config.Config
	execs *store.ExecutionRepository
	log   *zap.Logger
	cron  *cron.Cron
}

func New(cfg *config.Config, execs *store.ExecutionRepository, log *zap.Logger) *Scheduler {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	return &Scheduler{cfg: cfg, execs: execs, log: log, cron: c}
}

// Start registers the three maintenance jobs and begins the cron loop. It
// returns an error only if a schedule spec fails to parse, which would be a
// configuration bug caught well before production.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"reset_stuck_jobs", "*/3 * * * *", s.resetStuckJobs},
		{"cleanup_old_jobs", "0 3 * * *", s.cleanupOldJobs},
		{"check_job_health", "0 * * * *", s.checkJobHealth},
	}
	for _, j := range jobs {
		job := j
		_, err := s.cron.AddFunc(job.spec, func() { job.fn(ctx) })
		if err != nil {
			return fmt.Errorf("register scheduler job %q: %w", job.name, err)
		}
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// resetStuckJobs finds RUNNING executions whose last update predates the
// configured stuck threshold and transitions them to TIMEOUT. A stuck
// execution's worker is presumed dead or wedged. This only reconciles the
// execution row; the broker task and its processing-list entry are not
// touched.
func (s *Scheduler) resetStuckJobs(ctx context.Context) {
	stuck, err := s.execs.StuckSince(ctx, s.cfg.Scheduler.StuckThreshold)
	if err != nil {
		s.log.Error("reset_stuck_jobs: scan failed", obs.Err(err))
		return
	}
	for _, e := range stuck {
		if err := s.execs.TransitionTo(ctx, e.ID, domain.StatusRunning, domain.StatusTimeout, "reset by scheduler: no progress within stuck threshold"); err != nil {
			s.log.Warn("reset_stuck_jobs: transition failed", obs.Err(err), obs.Int64("execution_id", e.ID))
			continue
		}
		if err := s.execs.SetErrorMessage(ctx, e.ID, "stuck > threshold"); err != nil {
			s.log.Warn("reset_stuck_jobs: set error message failed", obs.Err(err), obs.Int64("execution_id", e.ID))
		}
		obs.JobsTimedOut.Inc()
		s.log.Warn("execution reset to timeout", obs.Int64("execution_id", e.ID), obs.Int64("job_id", e.JobID))
	}
	if len(stuck) > 0 {
		s.log.Info("reset_stuck_jobs complete", obs.Int("reset_count", len(stuck)))
	}
}

// cleanupOldJobs deletes terminal execution rows past the retention
// window. Workspace directories for failed runs are not touched here:
// that is a separate, filesystem-scoped concern the operator schedules
// independently, since execution-row retention and on-disk forensic
// retention rarely share a lifetime.
func (s *Scheduler) cleanupOldJobs(ctx context.Context) {
	old, err := s.execs.OlderThan(ctx, s.cfg.Scheduler.RetentionPeriod)
	if err != nil {
		s.log.Error("cleanup_old_jobs: scan failed", obs.Err(err))
		return
	}
	for _, e := range old {
		if err := s.execs.Delete(ctx, e.ID); err != nil {
			s.log.Warn("cleanup_old_jobs: delete failed", obs.Err(err), obs.Int64("execution_id", e.ID))
		}
	}
	if len(old) > 0 {
		s.log.Info("cleanup_old_jobs complete", obs.Int("deleted_count", len(old)))
	}
}

// checkJobHealth republishes the execution table's status distribution as
// gauges, giving dashboards a cheap way to notice a growing backlog
// between scrapes.
func (s *Scheduler) checkJobHealth(ctx context.Context) {
	counts, err := s.execs.CountByStatus(ctx)
	if err != nil {
		s.log.Warn("check_job_health: count failed", obs.Err(err))
		return
	}
	for status, n := range counts {
		obs.ExecutionsByStatus.WithLabelValues(string(status)).Set(float64(n))
	}
}
