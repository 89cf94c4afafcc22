package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/adapter/parser"
	"github.com/V4T54L/log-relay/internal/domain"
)

// IngestLogUseCase handles the business logic for one received log line.
type IngestLogUseCase struct {
	sink      domain.LogSink
	observers []domain.LogObserver
	service   string
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.RelayMetrics

	received atomic.Uint64
}

// NewIngestLogUseCase creates a new IngestLogUseCase.
func NewIngestLogUseCase(sink domain.LogSink, service string, logger *slog.Logger, m *metrics.RelayMetrics, observers ...domain.LogObserver) *IngestLogUseCase {
	return &IngestLogUseCase{
		sink:      sink,
		observers: observers,
		service:   service,
		now:       time.Now,
		logger:    logger.With("component", "ingest_log"),
		metrics:   m,
	}
}

// Ingest parses, persists, and fans out a log line.
func (uc *IngestLogUseCase) Ingest(ctx context.Context, line string) error {
	// 1. Parse, stamped with the instant of receipt
	record := parser.Parse(line, uc.now())
	uc.received.Add(1)
	if uc.metrics != nil {
		uc.metrics.LinesTotal.WithLabelValues(string(record.Level)).Inc()
	}

	// 2. Persist
	var writeErr error
	if err := uc.sink.Write(ctx, record); err != nil {
		writeErr = fmt.Errorf("failed to write log record: %w", err)
	}

	// 3. Fan out; observers still see lines the file sink rejected
	rendered := record.Format(uc.service)
	for _, o := range uc.observers {
		o.Observe(record, rendered)
	}

	return writeErr
}

// LinesReceived returns the number of lines ingested so far.
func (uc *IngestLogUseCase) LinesReceived() uint64 {
	return uc.received.Load()
}
