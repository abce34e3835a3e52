// Copyright 2025 James Ross
package broker

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler wraps robfig/cron to run periodic maintenance funcs registered
// through AddJob. Nothing in the engine constructs one: internal/scheduler
// runs its own cron instance for the store-backed jobs, and Reaper runs on
// its own ticker.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds()), log: log}
}

// AddJob registers fn under a 6-field, seconds-first cron spec (the cron
// instance is built WithSeconds, so a 5-field spec fails to parse) or a
// descriptor such as "@every 30s".
func (s *Scheduler) AddJob(spec string, name string, fn func()) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, func() {
		s.log.Debug("scheduled job firing", zap.String("job", name))
		fn()
	})
}

func (s *Scheduler) Start() { s.cron.Start() }
func (s *Scheduler) Stop()  { s.cron.Stop() }
