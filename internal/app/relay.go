// Package app wires the relay's listeners, sinks and observers together and
// drives them through their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/V4T54L/log-relay/internal/adapter/api"
	"github.com/V4T54L/log-relay/internal/adapter/api/handler"
	"github.com/V4T54L/log-relay/internal/adapter/console"
	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/adapter/repository/logfile"
	redisrepo "github.com/V4T54L/log-relay/internal/adapter/repository/redis"
	"github.com/V4T54L/log-relay/internal/adapter/repository/screenshot"
	"github.com/V4T54L/log-relay/internal/adapter/tcp"
	"github.com/V4T54L/log-relay/internal/domain"
	"github.com/V4T54L/log-relay/internal/pkg/config"
	"github.com/V4T54L/log-relay/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by Run before a successful Start.
var ErrNotStarted = errors.New("relay has not been started")

// Option customizes a Relay.
type Option func(*Relay)

// WithConsole replaces the terminal echo. A nil console disables it.
func WithConsole(c *console.Console) Option {
	return func(r *Relay) {
		r.console = c
		r.consoleSet = true
	}
}

// WithMetrics shares an existing metrics registry.
func WithMetrics(m *metrics.RelayMetrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// Relay owns both TCP listeners and everything they feed.
type Relay struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.RelayMetrics

	console    *console.Console
	consoleSet bool

	sink        *logfile.Sink
	store       *screenshot.Store
	ingest      *usecase.IngestLogUseCase
	saver       *usecase.SaveScreenshotUseCase
	scheduler   *usecase.RotationScheduler
	broker      *handler.SSEBroker
	redisClient *goredis.Client
	mirror      *redisrepo.Mirror

	logListener        *tcp.Listener
	screenshotListener *tcp.Listener
	adminServer        *http.Server
	adminListener      net.Listener

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	state domain.RelayState

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

var _ domain.StatusProvider = (*Relay)(nil)

// New creates a Relay in the Starting state. Nothing is bound until Start.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		cfg:        cfg,
		logger:     logger.With("component", "relay"),
		state:      domain.StateStarting,
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewRelayMetrics()
	}
	if !r.consoleSet && !cfg.Quiet {
		r.console = console.NewStdout()
	}
	return r
}

// Start opens the sinks and binds every socket. On failure everything already
// opened is released and the relay ends in the Stopped state.
func (r *Relay) Start() (err error) {
	r.ctx, r.cancel = context.WithCancel(context.Background())
	defer func() {
		if err != nil {
			r.releaseAfterFailedStart()
		}
	}()

	r.sink, err = logfile.NewSink(logfile.Options{
		Path:            r.cfg.OutputFile,
		ServiceName:     r.cfg.ServiceName,
		RotateInterval:  r.cfg.RotationInterval(),
		CompressRotated: r.cfg.CompressRotated,
		OnOpen:          r.announceLogFile,
		OnRotate:        r.announceRotation,
	}, r.logger, r.metrics)
	if err != nil {
		return fmt.Errorf("failed to open log sink: %w", err)
	}

	r.store, err = screenshot.NewStore(r.cfg.ScreenshotDir, r.logger)
	if err != nil {
		return err
	}

	var observers []domain.LogObserver
	if r.console != nil {
		observers = append(observers, r.console)
	}
	if r.cfg.AdminAddr != "" {
		r.broker = handler.NewSSEBroker(r.ctx, r.logger)
		observers = append(observers, r.broker)
	}
	if r.cfg.RedisURL != "" {
		r.redisClient, err = redisrepo.NewClient(r.cfg.RedisURL)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
		if pingErr := r.redisClient.Ping(pingCtx).Err(); pingErr != nil {
			r.logger.Warn("could not connect to redis, mirror will start unavailable", "error", pingErr)
		}
		cancel()
		r.mirror = redisrepo.NewMirror(r.redisClient, r.cfg.RedisChannel, 0, r.logger, r.metrics)
		observers = append(observers, r.mirror)
	}

	r.ingest = usecase.NewIngestLogUseCase(r.sink, r.cfg.ServiceName, r.logger, r.metrics, observers...)
	r.saver = usecase.NewSaveScreenshotUseCase(r.store, r.logger, r.metrics)
	r.scheduler = usecase.NewRotationScheduler(r.sink, r.cfg.RotationInterval(), r.logger)

	var saver tcp.FrameSaver = r.saver
	if r.console != nil {
		saver = &announcingSaver{FrameSaver: r.saver, console: r.console}
	}

	r.logListener = tcp.NewListener(tcp.ListenerConfig{
		Protocol:     metrics.ProtocolLog,
		Addr:         net.JoinHostPort(r.cfg.BindHost, strconv.Itoa(r.cfg.LogPort)),
		PollInterval: r.cfg.PollInterval,
	}, tcp.NewLogHandler(r.ingest, r.cfg.MaxLineBytes, r.metrics), r.logger, r.metrics)

	r.screenshotListener = tcp.NewListener(tcp.ListenerConfig{
		Protocol:     metrics.ProtocolScreenshot,
		Addr:         net.JoinHostPort(r.cfg.BindHost, strconv.Itoa(r.cfg.ScreenshotPort)),
		PollInterval: r.cfg.PollInterval,
	}, tcp.NewScreenshotHandler(saver, tcp.FrameLimits{
		MaxTimestampBytes: r.cfg.MaxTimestampBytes,
		MaxPayloadBytes:   r.cfg.MaxScreenshotBytes,
	}, r.metrics), r.logger, r.metrics)

	if err = r.logListener.Bind(); err != nil {
		return err
	}
	if err = r.screenshotListener.Bind(); err != nil {
		return err
	}

	if r.cfg.AdminAddr != "" {
		r.adminListener, err = net.Listen("tcp", r.cfg.AdminAddr)
		if err != nil {
			return fmt.Errorf("failed to bind admin server on %s: %w", r.cfg.AdminAddr, err)
		}
		r.adminServer = &http.Server{
			Handler:           api.NewAdminRouter(r, r.broker, r.metrics.Registry, r.logger),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       15 * time.Second,
		}
	}

	r.setState(domain.StateRunning)
	r.announceStartup()
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		r.logger.Warn("failed to notify systemd", "error", err)
	}
	return nil
}

// Run serves until ctx is done, Shutdown is called, or both listeners have
// stopped. It always leaves the relay Stopped and returns any listener failure.
func (r *Relay) Run(ctx context.Context) error {
	if r.State() != domain.StateRunning {
		return ErrNotStarted
	}

	var g errgroup.Group
	var listenersLeft atomic.Int32
	listenersLeft.Store(2)
	serve := func(l *tcp.Listener) func() error {
		return func() error {
			err := l.Serve(r.ctx)
			if err != nil {
				r.logger.Error("listener stopped", "error", err)
			}
			if listenersLeft.Add(-1) == 0 {
				r.Shutdown()
			}
			return err
		}
	}
	g.Go(serve(r.logListener))
	g.Go(serve(r.screenshotListener))
	g.Go(func() error { return r.scheduler.Run(r.ctx) })

	if r.mirror != nil {
		g.Go(func() error { return r.mirror.Run(r.ctx) })
		g.Go(func() error { return r.mirror.StartHealthCheck(r.ctx, r.cfg.RedisHealthInterval) })
	}
	if r.adminServer != nil {
		g.Go(func() error {
			r.logger.Info("starting admin & metrics server", "addr", r.adminListener.Addr().String())
			if err := r.adminServer.Serve(r.adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error("admin & metrics server failed", "error", err)
			}
			return nil
		})
	}

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case <-r.shutdownCh:
		r.logger.Info("shutdown requested")
	}

	r.setState(domain.StateShuttingDown)
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		r.logger.Warn("failed to notify systemd", "error", err)
	}
	if r.console != nil {
		r.console.Notice("Shutting down...")
	}

	r.cancel()
	r.logListener.Stop()
	r.screenshotListener.Stop()
	if r.adminServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := r.adminServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("admin server shutdown failed", "error", err)
		}
		cancel()
	}

	runErr := g.Wait()
	r.closeSinks()
	r.setState(domain.StateStopped)
	r.logger.Info("relay stopped",
		"lines_received", r.ingest.LinesReceived(),
		"screenshots_saved", r.saver.Saved(),
	)
	return runErr
}

// Shutdown asks a running relay to stop. It does not wait; Run returns once
// the relay is Stopped.
func (r *Relay) Shutdown() {
	r.shutdownOnce.Do(func() { close(r.shutdownCh) })
}

// State returns the current lifecycle state.
func (r *Relay) State() domain.RelayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status implements domain.StatusProvider.
func (r *Relay) Status() domain.RelayStatus {
	status := domain.RelayStatus{State: r.State()}
	if r.logListener != nil {
		status.LogConnections = r.logListener.ConnectionCount()
	}
	if r.screenshotListener != nil {
		status.ScreenshotConnections = r.screenshotListener.ConnectionCount()
	}
	if r.ingest != nil {
		status.LinesReceived = r.ingest.LinesReceived()
	}
	if r.saver != nil {
		status.ScreenshotsSaved = r.saver.Saved()
	}
	if r.sink != nil {
		status.CurrentLogPath = r.sink.CurrentPath()
	}
	return status
}

// LogAddr returns the bound log listener address.
func (r *Relay) LogAddr() net.Addr { return r.logListener.Addr() }

// ScreenshotAddr returns the bound screenshot listener address.
func (r *Relay) ScreenshotAddr() net.Addr { return r.screenshotListener.Addr() }

// AdminAddr returns the bound admin address, or nil when disabled.
func (r *Relay) AdminAddr() net.Addr {
	if r.adminListener == nil {
		return nil
	}
	return r.adminListener.Addr()
}

// Metrics returns the relay's metrics.
func (r *Relay) Metrics() *metrics.RelayMetrics { return r.metrics }

func (r *Relay) setState(s domain.RelayState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *Relay) releaseAfterFailedStart() {
	r.cancel()
	if r.logListener != nil {
		r.logListener.Stop()
	}
	if r.screenshotListener != nil {
		r.screenshotListener.Stop()
	}
	if r.adminListener != nil {
		r.adminListener.Close()
	}
	r.closeSinks()
	r.setState(domain.StateStopped)
}

func (r *Relay) closeSinks() {
	if r.sink != nil {
		if err := r.sink.Close(); err != nil {
			r.logger.Error("failed to close log sink", "error", err)
		}
	}
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			r.logger.Warn("failed to close redis client", "error", err)
		}
	}
}

func (r *Relay) announceLogFile(path string) {
	if r.console != nil {
		r.console.Notice("Writing logs to: %s", path)
	}
}

func (r *Relay) announceRotation(from, to string) {
	if r.console != nil {
		r.console.Notice("Log rotated: %s -> %s", from, to)
	}
}

func (r *Relay) announceStartup() {
	r.logger.Info("relay started",
		"log_addr", r.logListener.Addr().String(),
		"screenshot_addr", r.screenshotListener.Addr().String(),
		"screenshot_dir", r.store.Dir(),
		"log_file", r.cfg.OutputFile,
		"rotate_minutes", r.cfg.RotateMinutes,
	)
	if r.console == nil {
		return
	}
	r.console.Notice("Log server:        %s", r.logListener.Addr())
	r.console.Notice("Screenshot server: %s", r.screenshotListener.Addr())
	r.console.Notice("Screenshot dir:    %s", r.store.Dir())
	if r.cfg.OutputFile != "" {
		r.console.Notice("Log file:          %s", r.cfg.OutputFile)
	}
	if r.sink.RotationEnabled() {
		r.console.Notice("Log rotation:      every %d minutes", r.cfg.RotateMinutes)
	} else {
		r.console.Notice("Log rotation:      disabled")
	}
	r.console.Notice("Waiting for connections... (Ctrl+C to stop)")
}

// announcingSaver echoes every stored frame to the console.
type announcingSaver struct {
	tcp.FrameSaver
	console *console.Console
}

func (s *announcingSaver) Save(ctx context.Context, frame domain.ScreenshotFrame) (domain.SavedScreenshot, error) {
	saved, err := s.FrameSaver.Save(ctx, frame)
	if err == nil {
		s.console.ScreenshotSaved(saved)
	}
	return saved, err
}
