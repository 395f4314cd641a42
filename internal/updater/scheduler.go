package updater

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/karatlabs/karat/internal/entity"
)

// Scheduler periodically triggers update runs. It shares the Updater's
// single-flight guard with manual triggers, so a tick that fires while an
// operator-initiated run is in flight simply joins that run.
type Scheduler struct {
	updater  *Updater
	interval time.Duration
	currency string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler for the given currency.
func NewScheduler(u *Updater, interval time.Duration, currency string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		updater:  u,
		interval: interval,
		currency: currency,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, triggering an update every interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting scheduled price updates",
		zap.String("currency", s.currency),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping scheduled price updates")
			return ctx.Err()
		case <-ticker.C:
			entry, err := s.updater.RunUpdate(ctx, s.currency, entity.TriggerScheduled, Options{})
			if err != nil {
				s.logger.Error("scheduled price update failed",
					zap.String("run_id", entry.ID),
					zap.Error(err))
			}
		}
	}
}
