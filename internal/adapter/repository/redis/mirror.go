package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/domain"
)

const defaultQueueSize = 1024

// Message is the JSON document published for every log record.
type Message struct {
	domain.LogRecord
	Line string `json:"line"`
}

// Mirror publishes log records to a Redis pub/sub channel.
// Observe never blocks: records are queued and dropped when the queue is full
// or Redis is known to be unavailable.
type Mirror struct {
	client      *redis.Client
	channel     string
	queue       chan Message
	logger      *slog.Logger
	metrics     *metrics.RelayMetrics
	isAvailable atomic.Bool
	published   atomic.Uint64
}

var _ domain.LogObserver = (*Mirror)(nil)

// NewMirror creates a Mirror. queueSize <= 0 selects the default.
func NewMirror(client *redis.Client, channel string, queueSize int, logger *slog.Logger, m *metrics.RelayMetrics) *Mirror {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	mirror := &Mirror{
		client:  client,
		channel: channel,
		queue:   make(chan Message, queueSize),
		logger:  logger.With("component", "redis_mirror", "channel", channel),
		metrics: m,
	}
	mirror.isAvailable.Store(true) // Assume available initially
	return mirror
}

// Observe queues a record for publishing.
func (m *Mirror) Observe(record domain.LogRecord, line string) {
	if !m.isAvailable.Load() {
		m.dropped()
		return
	}
	select {
	case m.queue <- Message{LogRecord: record, Line: line}:
	default:
		m.dropped()
	}
}

// Published returns the number of records successfully published.
func (m *Mirror) Published() uint64 {
	return m.published.Load()
}

// Available reports the last known Redis connectivity.
func (m *Mirror) Available() bool {
	return m.isAvailable.Load()
}

// Run publishes queued records until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	m.logger.Info("Starting Redis mirror publisher")
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping Redis mirror publisher", "pending", len(m.queue))
			return nil
		case msg := <-m.queue:
			if err := m.publish(ctx, msg); err != nil {
				m.dropped()
				if isNetworkError(err) {
					if m.isAvailable.CompareAndSwap(true, false) {
						m.logger.Error("Redis connection lost during publish", "error", err)
					}
					continue
				}
				m.logger.Warn("Failed to publish log record", "error", err)
			}
		}
	}
}

// StartHealthCheck pings Redis every interval and flips availability on transitions.
func (m *Mirror) StartHealthCheck(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping Redis health check")
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, interval)
			err := m.client.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				if m.isAvailable.CompareAndSwap(true, false) {
					m.logger.Error("Redis connection lost", "error", err)
				}
			} else if m.isAvailable.CompareAndSwap(false, true) {
				m.logger.Info("Redis connection recovered")
			}
		}
	}
}

func (m *Mirror) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal log record: %w", err)
	}
	if err := m.client.Publish(ctx, m.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to redis channel: %w", err)
	}
	m.published.Add(1)
	return nil
}

func (m *Mirror) dropped() {
	if m.metrics != nil {
		m.metrics.MirrorDroppedTotal.Inc()
	}
}

// NewClient builds a client from a redis:// URL.
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.DeadlineExceeded)
}
