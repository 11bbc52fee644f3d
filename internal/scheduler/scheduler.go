// Package scheduler runs periodic publishes on top of gocron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/conneroisu/pagesmith/internal/logging"
)

// PublishFunc publishes the site.
type PublishFunc func(ctx context.Context) error

// Scheduler triggers a publish at a fixed interval. Runs never overlap; a
// tick that arrives while a publish is running is skipped.
type Scheduler struct {
	scheduler gocron.Scheduler
	publish   PublishFunc
	logger    logging.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a scheduler that calls publish.
func New(publish PublishFunc, logger logging.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		publish:   publish,
		logger:    logging.OrNop(logger).WithComponent("scheduler"),
	}, nil
}

// SchedulePublish registers the periodic publish job and returns its id.
func (s *Scheduler) SchedulePublish(interval time.Duration) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("publish interval must be positive, got %s", interval)
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("publish"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic publish job: %w", err)
	}
	return job.ID().String(), nil
}

// Start begins running scheduled jobs until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info(ctx, "starting scheduler", "jobs", len(s.scheduler.Jobs()))
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running publish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info(ctx, "stopping scheduler")
	if s.cancel != nil {
		s.cancel()
	}
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	if err := s.publish(ctx); err != nil {
		s.logger.Error(ctx, err, "scheduled publish failed")
		return
	}
	s.logger.Info(ctx, "scheduled publish finished", "duration", time.Since(start))
}
