package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/domain"
)

// SaveScreenshotUseCase persists screenshot frames and numbers them.
type SaveScreenshotUseCase struct {
	store   domain.ScreenshotStore
	logger  *slog.Logger
	metrics *metrics.RelayMetrics

	saved atomic.Uint64
}

func NewSaveScreenshotUseCase(store domain.ScreenshotStore, logger *slog.Logger, m *metrics.RelayMetrics) *SaveScreenshotUseCase {
	return &SaveScreenshotUseCase{
		store:   store,
		logger:  logger.With("component", "save_screenshot"),
		metrics: m,
	}
}

// Save writes the frame and assigns it the next sequence number.
func (uc *SaveScreenshotUseCase) Save(ctx context.Context, frame domain.ScreenshotFrame) (domain.SavedScreenshot, error) {
	path, err := uc.store.Save(ctx, frame)
	if err != nil {
		return domain.SavedScreenshot{}, fmt.Errorf("failed to save screenshot: %w", err)
	}

	seq := uc.saved.Add(1)
	if uc.metrics != nil {
		uc.metrics.ScreenshotsTotal.Inc()
		uc.metrics.ScreenshotBytesTotal.Add(float64(len(frame.Payload)))
	}
	uc.logger.Debug("Screenshot stored", "sequence", seq, "path", path)

	return domain.SavedScreenshot{Path: path, Size: len(frame.Payload), Sequence: seq}, nil
}

// Saved returns the number of screenshots written so far.
func (uc *SaveScreenshotUseCase) Saved() uint64 {
	return uc.saved.Load()
}
