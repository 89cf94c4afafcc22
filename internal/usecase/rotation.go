package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/V4T54L/log-relay/internal/domain"
)

// RotationScheduler rotates a LogSink at a fixed interval.
type RotationScheduler struct {
	sink     domain.LogSink
	interval time.Duration
	logger   *slog.Logger
}

func NewRotationScheduler(sink domain.LogSink, interval time.Duration, logger *slog.Logger) *RotationScheduler {
	return &RotationScheduler{
		sink:     sink,
		interval: interval,
		logger:   logger.With("component", "rotation_scheduler"),
	}
}

// Run blocks until ctx is cancelled. The timer is re-armed after every rotation,
// so a slow rotation delays the next one instead of overlapping it.
func (s *RotationScheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return nil
	}
	s.logger.Info("Rotation scheduler started", "interval", s.interval)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rotation scheduler stopped")
			return nil
		case <-timer.C:
			if err := s.sink.Rotate(ctx); err != nil {
				s.logger.Error("failed to rotate log file", "error", err)
			}
			timer.Reset(s.interval)
		}
	}
}
