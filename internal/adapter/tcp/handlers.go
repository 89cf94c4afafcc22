package tcp

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/domain"
)

const readChunkSize = 4096

// LineIngester consumes one decoded log line.
type LineIngester interface {
	Ingest(ctx context.Context, line string) error
}

// FrameSaver persists one complete screenshot frame.
type FrameSaver interface {
	Save(ctx context.Context, frame domain.ScreenshotFrame) (domain.SavedScreenshot, error)
}

// LogHandler serves the newline-delimited log protocol.
type LogHandler struct {
	ingest  LineIngester
	maxLine int
	metrics *metrics.RelayMetrics
}

// NewLogHandler creates a LogHandler. maxLine <= 0 disables the line length cap.
func NewLogHandler(ingest LineIngester, maxLine int, m *metrics.RelayMetrics) *LogHandler {
	return &LogHandler{ingest: ingest, maxLine: maxLine, metrics: m}
}

func (h *LogHandler) Handle(ctx context.Context, c *Conn) {
	lines := newLineBuffer(h.maxLine)
	buf := make([]byte, readChunkSize)

	for !c.Stopped() {
		if err := c.SetReadDeadline(time.Now().Add(c.PollInterval())); err != nil {
			if !c.Stopped() {
				c.Logger.Warn("Failed to set read deadline", "error", err)
			}
			return
		}

		n, err := c.Read(buf)
		if n > 0 {
			if h.metrics != nil {
				h.metrics.BytesTotal.WithLabelValues(metrics.ProtocolLog).Add(float64(n))
			}
			for _, line := range lines.Feed(buf[:n]) {
				if err := h.ingest.Ingest(ctx, line); err != nil {
					c.Logger.Error("Failed to ingest log line", "error", err)
				}
			}
		}
		if err == nil {
			continue
		}
		if isTimeout(err) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if pending := lines.Pending(); pending > 0 {
				c.Logger.Debug("Discarding unterminated trailing data", "bytes", pending)
			}
			return
		}
		if !c.Stopped() {
			c.Logger.Warn("Read failed", "error", err)
		}
		return
	}
}

// ScreenshotHandler serves the length-prefixed screenshot protocol.
type ScreenshotHandler struct {
	saver   FrameSaver
	limits  FrameLimits
	metrics *metrics.RelayMetrics
}

// NewScreenshotHandler creates a ScreenshotHandler.
func NewScreenshotHandler(saver FrameSaver, limits FrameLimits, m *metrics.RelayMetrics) *ScreenshotHandler {
	return &ScreenshotHandler{saver: saver, limits: limits, metrics: m}
}

func (h *ScreenshotHandler) Handle(ctx context.Context, c *Conn) {
	for {
		capturedAt, payload, err := ReadFrame(c, h.limits, c.PollInterval(), c.Done())
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, ErrStopped):
			case errors.Is(err, ErrFrameTooLarge):
				h.aborted()
				c.Logger.Warn("Rejected oversized screenshot frame", "error", err)
			default:
				h.aborted()
				if !c.Stopped() {
					c.Logger.Warn("Screenshot frame incomplete, discarding", "error", err)
				}
			}
			return
		}

		if h.metrics != nil {
			h.metrics.BytesTotal.WithLabelValues(metrics.ProtocolScreenshot).
				Add(float64(2*frameHeaderSize + len(capturedAt) + len(payload)))
		}

		saved, err := h.saver.Save(ctx, domain.ScreenshotFrame{
			CapturedAt: capturedAt,
			Payload:    payload,
			ReceivedAt: time.Now(),
		})
		if err != nil {
			c.Logger.Error("Failed to save screenshot", "captured_at", capturedAt, "error", err)
			continue
		}
		c.Logger.Info("Screenshot saved",
			"sequence", saved.Sequence,
			"path", saved.Path,
			"size_kb", float64(saved.Size)/1024,
		)
	}
}

func (h *ScreenshotHandler) aborted() {
	if h.metrics != nil {
		h.metrics.FramesAbortedTotal.Inc()
	}
}
