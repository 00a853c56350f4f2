package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/possync/internal/logging"
	"github.com/robfig/cron/v3"
)

type Trigger interface {
	TriggerSync() bool
}

// Scheduler triggers a pass every interval while the terminal believes it is
// online. Intervals below one second are rounded up by cron.
type Scheduler struct {
	interval time.Duration
	trigger  Trigger
	online   OnlineState
	logger   logging.Logger
	cron     *cron.Cron
}

func NewScheduler(interval time.Duration, trigger Trigger, online OnlineState, logger logging.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		trigger:  trigger,
		online:   online,
		logger:   logger,
		cron:     cron.New(),
	}
}

func (s *Scheduler) tick() {
	if s.online != nil && !s.online.IsOnline() {
		s.logger.Debug(context.Background(), "offline, skipping scheduled sync")
		return
	}
	if !s.trigger.TriggerSync() {
		s.logger.Debug(context.Background(), "sync already running, skipping scheduled run")
	}
}

// Run schedules the job and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info(ctx, "periodic sync disabled")
		<-ctx.Done()
		return nil
	}

	expr := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(expr, s.tick); err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}

	s.logger.Info(ctx, "periodic sync scheduled", "interval", s.interval)
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
