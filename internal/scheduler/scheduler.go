// Package scheduler flushes the pending notification queue on a fixed
// interval using gocron, so queued pushes leave the process without an
// explicit flush call.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dogma165/push-notification/internal/webpush"
)

// FlushService is the part of the push service the scheduler drives.
type FlushService interface {
	Pending() int
	Flush(ctx context.Context) (*webpush.FlushReport, error)
}

// Scheduler periodically flushes the queue.
type Scheduler struct {
	cron     gocron.Scheduler
	svc      FlushService
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Scheduler flushing every interval.
func New(svc FlushService, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating gocron scheduler: %w", err)
	}

	return &Scheduler{cron: cron, svc: svc, interval: interval, logger: logger}, nil
}

// Start registers the flush job and starts the gocron scheduler.
func (s *Scheduler) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.flush),
	)
	if err != nil {
		return fmt.Errorf("scheduling flush job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("auto-flush enabled", "interval", s.interval.String())
	return nil
}

// Stop shuts down the gocron scheduler.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// flush drains the queue if anything is pending and logs the outcome.
func (s *Scheduler) flush() {
	if s.svc.Pending() == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	report, err := s.svc.Flush(ctx)
	if err != nil {
		s.logger.Error("scheduled flush failed", "error", err)
		return
	}
	if report != nil {
		s.logger.Info("scheduled flush completed",
			"total", len(report.Results), "failed", report.Failed())
	}
}
