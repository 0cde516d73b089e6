package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReasonScheduled is logged for exports started by the scheduler.
const ReasonScheduled = "scheduled"

// Exporter writes one snapshot.
type Exporter interface {
	Export(ctx context.Context, reason string, fields ...zap.Field) error
}

// Scheduler runs full exports on a cron schedule, independent of events.
type Scheduler struct {
	cron     *cron.Cron
	exporter Exporter
	logger   *zap.Logger
}

// NewScheduler validates spec (standard 5-field cron or a descriptor such as
// "@hourly") and registers the export job.
func NewScheduler(ctx context.Context, spec string, exporter Exporter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{cron: cron.New(), exporter: exporter, logger: logger}
	_, err := s.cron.AddFunc(spec, func() {
		if err := exporter.Export(ctx, ReasonScheduled); err != nil {
			logger.Warn("scheduled export failed", zap.String("schedule", spec), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("export scheduler started")
}

// Stop stops the scheduler and waits for a running export to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("export scheduler stopped")
}
