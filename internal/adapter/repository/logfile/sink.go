package logfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/log-relay/internal/adapter/metrics"
	"github.com/V4T54L/log-relay/internal/domain"
)

const (
	filePerm        = 0644
	dirPerm         = 0755
	rotationLayout  = "20060102_150405"
	pointerTempName = ".relay-link-"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("log sink is closed")

// Options configures a Sink.
type Options struct {
	// Path is the user-facing log path. Empty disables the sink.
	Path        string
	ServiceName string
	// RotateInterval > 0 enables timestamped files behind a symlink at Path.
	RotateInterval  time.Duration
	CompressRotated bool
	// Now defaults to time.Now.
	Now func() time.Time
	// OnOpen is called with every newly opened file path, under the sink lock.
	OnOpen func(path string)
	// OnRotate is called after each rotation, outside the sink lock.
	OnRotate func(from, to string)
}

// Sink appends rendered log records to a file, optionally rotating it.
// Writes and rotation share one mutex, so a line never straddles two files.
type Sink struct {
	basePath string
	service  string
	rotate   bool
	compress bool
	now      func() time.Time
	onOpen   func(path string)
	onRotate func(from, to string)
	logger   *slog.Logger
	metrics  *metrics.RelayMetrics

	mu          sync.Mutex
	file        *os.File
	currentPath string
	closed      bool

	compressions sync.WaitGroup
}

var _ domain.LogSink = (*Sink)(nil)

// NewSink creates a Sink and opens its first file.
func NewSink(opts Options, logger *slog.Logger, m *metrics.RelayMetrics) (*Sink, error) {
	s := &Sink{
		basePath: opts.Path,
		service:  opts.ServiceName,
		rotate:   opts.RotateInterval > 0,
		compress: opts.CompressRotated,
		now:      opts.Now,
		onOpen:   opts.OnOpen,
		onRotate: opts.OnRotate,
		logger:   logger.With("component", "log_sink"),
		metrics:  m,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.basePath == "" {
		s.logger.Info("no output file configured, file sink disabled")
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.basePath), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %s: %w", s.basePath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openNext(); err != nil {
		return nil, err
	}
	return s, nil
}

// Enabled reports whether the sink writes to a file at all.
func (s *Sink) Enabled() bool {
	return s.basePath != ""
}

// RotationEnabled reports whether Rotate switches files.
func (s *Sink) RotationEnabled() bool {
	return s.Enabled() && s.rotate
}

// Write appends one rendered record followed by a newline.
func (s *Sink) Write(ctx context.Context, record domain.LogRecord) error {
	if !s.Enabled() {
		return nil
	}
	line := record.Format(s.service) + "\n"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := s.file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write to log file %s: %w", s.currentPath, err)
	}
	return nil
}

// Rotate switches to a freshly timestamped file and repoints the symlink.
// It is a no-op when rotation is disabled.
func (s *Sink) Rotate(ctx context.Context) error {
	if !s.RotationEnabled() {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	oldFile, oldPath := s.file, s.currentPath
	if err := s.openNext(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := oldFile.Sync(); err != nil {
		s.logger.Error("Failed to sync log file before rotating", "path", oldPath, "error", err)
	}
	if err := oldFile.Close(); err != nil {
		s.logger.Error("Failed to close log file before rotating", "path", oldPath, "error", err)
	}
	newPath := s.currentPath
	if s.compress {
		s.compressions.Add(1)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RotationsTotal.Inc()
	}
	s.logger.Info("Log rotated", "from", oldPath, "to", newPath)
	if s.onRotate != nil {
		s.onRotate(oldPath, newPath)
	}

	if s.compress {
		go func() {
			defer s.compressions.Done()
			if err := compressFile(oldPath); err != nil {
				s.logger.Warn("Failed to compress rotated log file", "path", oldPath, "error", err)
			}
		}()
	}
	return nil
}

// CurrentPath returns the file currently receiving writes.
func (s *Sink) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath
}

// Close flushes and closes the current file and waits for pending compressions.
func (s *Sink) Close() error {
	s.mu.Lock()
	var err error
	if s.file != nil && !s.closed {
		if syncErr := s.file.Sync(); syncErr != nil {
			s.logger.Warn("Failed to sync log file on close", "error", syncErr)
		}
		err = s.file.Close()
		s.file = nil
	}
	s.closed = true
	s.mu.Unlock()

	s.compressions.Wait()
	return err
}

// openNext opens the next backing file and makes it current. Caller holds s.mu.
func (s *Sink) openNext() error {
	path := s.basePath
	if s.rotate {
		path = s.nextRotatedPath()
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	s.file = f
	s.currentPath = path

	if s.rotate {
		if err := s.updatePointer(path); err != nil {
			s.logger.Warn("Failed to update log file pointer", "pointer", s.basePath, "target", path, "error", err)
			if s.metrics != nil {
				s.metrics.PointerFailuresTotal.Inc()
			}
		}
	}

	s.logger.Info("Writing logs to file", "path", path)
	if s.onOpen != nil {
		s.onOpen(path)
	}
	return nil
}

// nextRotatedPath turns /tmp/app_logs.txt into /tmp/app_logs_20260205_195300.txt,
// adding a -N suffix when that name is current or already taken, compressed or not.
func (s *Sink) nextRotatedPath() string {
	ext := filepath.Ext(s.basePath)
	root := strings.TrimSuffix(s.basePath, ext)
	stamp := s.now().Format(rotationLayout)

	candidate := fmt.Sprintf("%s_%s%s", root, stamp, ext)
	for i := 1; candidate == s.currentPath || exists(candidate) || exists(candidate+compressedExt); i++ {
		candidate = fmt.Sprintf("%s_%s-%d%s", root, stamp, i, ext)
	}
	return candidate
}

// updatePointer atomically replaces the symlink at basePath with one to target.
func (s *Sink) updatePointer(target string) error {
	dir := filepath.Dir(s.basePath)
	tmp := filepath.Join(dir, pointerTempName+filepath.Base(s.basePath))
	_ = os.Remove(tmp)

	if err := os.Symlink(filepath.Base(target), tmp); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	if err := os.Rename(tmp, s.basePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", s.basePath, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
