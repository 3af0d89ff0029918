package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is how often the scheduler re-evaluates statuses.
const DefaultInterval = time.Minute

// Scheduler runs the evaluator once at start and then on a fixed interval.
// Runs never overlap; a run still in progress when the next is due is
// rescheduled instead of queued.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	sched gocron.Scheduler
}

// NewScheduler creates a Scheduler. It does nothing until Start.
func NewScheduler(runner Runner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{runner: runner, interval: interval, clock: clock, logger: logger}
}

// Start registers the job and begins ticking. ctx bounds every run; cancel
// it or call Stop to end the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.sched != nil {
		return fmt.Errorf("status scheduler already started")
	}

	sched, err := gocron.NewScheduler(
		gocron.WithClock(s.clock),
		gocron.WithLogger(s.logger),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.tick(ctx) }),
		gocron.WithName("tournament-status-evaluation"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("register evaluation job: %w", err)
	}

	s.sched = sched
	sched.Start()
	s.logger.Info("status scheduler started", "interval", s.interval.String())
	return nil
}

// Stop shuts the scheduler down and waits for a running pass to return.
func (s *Scheduler) Stop() error {
	if s.sched == nil {
		return nil
	}
	err := s.sched.Shutdown()
	s.sched = nil
	if err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	s.logger.Info("status scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.EvaluateAndPersist(ctx, s.clock.Now()); err != nil {
		s.logger.Error("scheduled status evaluation failed", "error", err)
	}
}
