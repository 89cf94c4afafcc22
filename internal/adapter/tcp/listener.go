package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
)

const maxAcceptBackoff = time.Second

// Handler serves one accepted connection until the peer goes away or the
// connection is stopped. The listener closes the socket after Handle returns.
type Handler interface {
	Handle(ctx context.Context, conn *Conn)
}

// Conn is an accepted client connection.
type Conn struct {
	net.Conn
	ID     string
	Logger *slog.Logger

	poll time.Duration
	stop <-chan struct{}
}

// NewConn wraps c. Reads are bounded by poll and abandoned once stop is closed.
func NewConn(c net.Conn, poll time.Duration, stop <-chan struct{}, logger *slog.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		Conn:   c,
		ID:     id,
		Logger: logger.With("conn_id", id, "remote_addr", c.RemoteAddr().String()),
		poll:   poll,
		stop:   stop,
	}
}

// Done is closed when the owning listener starts shutting down.
func (c *Conn) Done() <-chan struct{} {
	return c.stop
}

// Stopped reports whether the owning listener is shutting down.
func (c *Conn) Stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// PollInterval bounds every blocking read on the connection.
func (c *Conn) PollInterval() time.Duration {
	return c.poll
}

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	// Protocol names the listener in logs and metrics.
	Protocol     string
	Addr         string
	PollInterval time.Duration
}

// Listener accepts TCP connections and serves each on its own goroutine.
type Listener struct {
	cfg     ListenerConfig
	handler Handler
	logger  *slog.Logger
	metrics *metrics.RelayMetrics

	ln       *net.TCPListener
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	conns   map[*Conn]struct{}
	stopped bool
	wg      sync.WaitGroup
}

// NewListener creates a Listener. Call Bind before Serve.
func NewListener(cfg ListenerConfig, handler Handler, logger *slog.Logger, m *metrics.RelayMetrics) *Listener {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "tcp_listener", "protocol", cfg.Protocol),
		metrics: m,
		stopCh:  make(chan struct{}),
		conns:   make(map[*Conn]struct{}),
	}
}

// Bind opens the listening socket. Failure is not retried.
func (l *Listener) Bind() error {
	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s listener on %s: %w", l.cfg.Protocol, l.cfg.Addr, err)
	}
	l.ln = ln.(*net.TCPListener)
	l.logger.Info("Listener bound", "addr", l.ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve runs the accept loop until Stop is called or ctx is done. It returns a
// non-nil error only when the listening socket fails while the listener is running.
func (l *Listener) Serve(ctx context.Context) error {
	if l.ln == nil {
		return fmt.Errorf("%s listener is not bound", l.cfg.Protocol)
	}

	var backoff time.Duration
	for {
		select {
		case <-l.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}

		if err := l.ln.SetDeadline(time.Now().Add(l.cfg.PollInterval)); err != nil {
			if l.isStopped() {
				return nil
			}
			return fmt.Errorf("failed to set accept deadline: %w", err)
		}

		c, err := l.ln.AcceptTCP()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if l.isStopped() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				l.logger.Error("Listener socket closed unexpectedly", "error", err)
				return fmt.Errorf("%s listener failed: %w", l.cfg.Protocol, err)
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			l.logger.Warn("Accept failed, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		conn := NewConn(c, l.cfg.PollInterval, l.stopCh, l.logger)
		if !l.register(conn) {
			c.Close()
			return nil
		}
		go l.serveConn(ctx, conn)
	}
}

// Stop closes the listening socket and every registered connection, then waits
// for all handler goroutines to return. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		if l.ln != nil {
			l.ln.Close()
		}

		l.mu.Lock()
		l.stopped = true
		for c := range l.conns {
			c.Close()
		}
		clear(l.conns)
		l.mu.Unlock()

		l.logger.Info("Listener stopped")
	})
	l.wg.Wait()
}

// ConnectionCount returns the number of registered connections.
func (l *Listener) ConnectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *Listener) isStopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

func (l *Listener) register(c *Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.conns[c] = struct{}{}
	l.wg.Add(1)
	return true
}

func (l *Listener) deregister(c *Conn) {
	l.mu.Lock()
	delete(l.conns, c)
	l.mu.Unlock()
}

func (l *Listener) serveConn(ctx context.Context, c *Conn) {
	defer l.wg.Done()
	if l.metrics != nil {
		l.metrics.ConnectionsTotal.WithLabelValues(l.cfg.Protocol).Inc()
		l.metrics.ConnectionsActive.WithLabelValues(l.cfg.Protocol).Inc()
		defer l.metrics.ConnectionsActive.WithLabelValues(l.cfg.Protocol).Dec()
	}

	c.Logger.Info("Client connected")
	defer func() {
		c.Close()
		l.deregister(c)
		c.Logger.Info("Client disconnected")
	}()

	l.handler.Handle(ctx, c)
}
