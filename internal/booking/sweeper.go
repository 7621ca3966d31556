package booking

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSweepSchedule runs the sweep twice a minute.
const DefaultSweepSchedule = "@every 30s"

// Sweeper periodically expires lapsed holds. Reads never wait for it since
// availability already ignores lapsed holds; it only brings stored status in
// line with time.
type Sweeper struct {
	mgr      *Manager
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	log      *zap.Logger
}

// NewSweeper builds a sweeper over mgr using a cron schedule such as
// "@every 30s" or "*/1 * * * *". An empty schedule uses the default.
func NewSweeper(mgr *Manager, schedule string, log *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{mgr: mgr, schedule: schedule, timeout: 20 * time.Second, log: log}
}

// Start registers the job and starts the scheduler. Overlapping runs are
// skipped rather than queued.
func (s *Sweeper) Start() error {
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
		cron.Recover(cron.DiscardLogger),
	))
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("expiry sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("expiry sweeper stopped")
}

// RunOnce performs a single bounded sweep.
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.mgr.SweepExpired(ctx); err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
	}
}
