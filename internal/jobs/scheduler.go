package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs every ten minutes (seconds field first).
const DefaultSweepSchedule = "0 */10 * * * *"

// Sweeper prunes voice sessions whose registry entries expired.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
}

func NewScheduler(sweeper Sweeper) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		timeout: 30 * time.Second,
	}
}

// Start registers the sweep job on the given cron schedule and starts the runner.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := s.cron.AddFunc(schedule, s.RunSweep); err != nil {
		return fmt.Errorf("failed to create cron job: %w", err)
	}

	log.Printf("[info] cron scheduler started (voice session sweep %q)", schedule)
	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunSweep runs one sweep; errors are logged, never fatal.
func (s *Scheduler) RunSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("[error] operation=voice_sweep error=%v", err)
		return
	}
	if n > 0 {
		log.Printf("[info] operation=voice_sweep removed=%d", n)
	}
}
