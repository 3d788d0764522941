package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/services"
)

// Scheduler drives the daily accrual run. Each subscription is already
// idempotent at the database level, so an overlapping or repeated run is
// harmless.
type Scheduler struct {
	cron     *cron.Cron
	accruals *services.AccrualService
	cfg      *config.PlatformConfig
}

func NewScheduler(accruals *services.AccrualService, cfg *config.PlatformConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:     c,
		accruals: accruals,
		cfg:      cfg,
	}
}

// Start registers the accrual job and starts the cron loop.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.cfg.AccrualSchedule, s.runAccruals); err != nil {
		log.Printf("[SCHEDULER] Failed to schedule accrual job: %v", err)
		return
	}
	log.Printf("[SCHEDULER] Accrual job scheduled (%s)", s.cfg.AccrualSchedule)
	s.cron.Start()
}

// Stop stops the cron loop and returns a context that is done once any
// in-flight job has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runAccruals() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.accruals.AccrueDue(ctx, time.Now()); err != nil {
		log.Printf("[SCHEDULER] Accrual run failed: %v", err)
	}
}
