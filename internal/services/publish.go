package services

import (
	"context"
	"sync"

	"github.com/conneroisu/pagesmith/internal/logging"
	"github.com/conneroisu/pagesmith/internal/publish"
)

// PublishService runs publishes one at a time. Triggers from the API, the
// watcher and the scheduler all go through it.
type PublishService struct {
	mu       sync.Mutex
	pipeline *publish.Pipeline
	logger   logging.Logger

	lastMu sync.RWMutex
	last   *publish.Report
}

// NewPublishService creates a publish service over pipeline.
func NewPublishService(pipeline *publish.Pipeline, logger logging.Logger) *PublishService {
	return &PublishService{
		pipeline: pipeline,
		logger:   logging.OrNop(logger).WithComponent("publisher"),
	}
}

// Publish publishes pages, or every page when pages is empty.
func (s *PublishService) Publish(ctx context.Context, pages []string) (*publish.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.pipeline.Publish(ctx, pages)
	if err != nil {
		return nil, err
	}
	s.lastMu.Lock()
	s.last = report
	s.lastMu.Unlock()
	if !report.OK() {
		s.logger.Warn(ctx, nil, "publish finished with failures", "failed", len(report.Failed))
	}
	return report, nil
}

// PublishAll publishes every stored page. It matches the scheduler's
// callback signature.
func (s *PublishService) PublishAll(ctx context.Context) error {
	_, err := s.Publish(ctx, nil)
	return err
}

// Last returns the report of the most recent run, or nil. It does not wait
// for a run in progress.
func (s *PublishService) Last() *publish.Report {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}
