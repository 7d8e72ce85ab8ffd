package usecase

import (
	"context"
	"log/slog"
	"time"

	"cdoportal/internal/logging"
	"cdoportal/internal/ports"
)

// Scheduler wires the interval driver with the ingestion pipeline.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring ingestion. notifier may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, notifier ports.Notifier, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, notifier: notifier, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		s.Tick(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Tick runs one full ingestion pass and publishes a digest when something changed.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	s.logger.Info("scheduled ingestion", "trigger", trigger.Format(time.RFC3339))

	results, err := s.pipeline.RunAll(ctx)
	if err != nil {
		s.logger.Error("scheduled ingestion aborted", "error", err)
	}

	if s.notifier == nil || !worthReporting(results) {
		return
	}
	if err := s.notifier.PublishDigest(ctx, BuildDigest(results)); err != nil {
		s.logger.Error("publish digest", "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func worthReporting(results []RunResult) bool {
	for _, r := range results {
		if r.Created > 0 || r.Failed() > 0 {
			return true
		}
	}
	return false
}
