package screenshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/V4T54L/log-relay/internal/domain"
)

const (
	filePrefix     = "screenshot_"
	fileExt        = ".jpg"
	tempPattern    = ".screenshot-*.tmp"
	filePerm       = 0644
	dirPerm        = 0755
	fallbackLayout = "2006-01-02_15-04-05-000"
)

var timestampReplacer = strings.NewReplacer(
	":", "-",
	" ", "_",
	".", "-",
	"/", "-",
	"\\", "-",
	"\x00", "",
)

// SanitizeTimestamp makes client timestamp text safe to embed in a file name.
func SanitizeTimestamp(ts string) string {
	return timestampReplacer.Replace(strings.TrimSpace(ts))
}

// FileName returns screenshot_<sanitized>.jpg for a frame.
func FileName(frame domain.ScreenshotFrame) string {
	stamp := SanitizeTimestamp(frame.CapturedAt)
	if stamp == "" {
		stamp = frame.ReceivedAt.Format(fallbackLayout)
	}
	return filePrefix + stamp + fileExt
}

// Store writes screenshot payloads into a directory.
// A file only appears under its final name once fully written.
type Store struct {
	dir    string
	logger *slog.Logger

	// mu serializes final-name selection so two frames never claim one name.
	mu sync.Mutex
}

var _ domain.ScreenshotStore = (*Store)(nil)

// NewStore creates dir if needed and returns a Store writing into it.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory %s: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "screenshot_store"),
	}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the payload to a temporary file and renames it into place.
func (s *Store) Save(ctx context.Context, frame domain.ScreenshotFrame) (string, error) {
	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp screenshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(frame.Payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write screenshot payload: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		s.logger.Warn("Failed to set screenshot file mode", "path", tmpPath, "error", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close screenshot file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.uniquePath(FileName(frame))
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move screenshot into place: %w", err)
	}
	return final, nil
}

// uniquePath appends _2, _3, ... when name is already taken. Caller holds s.mu.
func (s *Store) uniquePath(name string) string {
	path := filepath.Join(s.dir, name)
	if _, err := os.Lstat(path); os.IsNotExist(err) {
		return path
	}
	stem := strings.TrimSuffix(name, fileExt)
	for i := 2; ; i++ {
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", stem, i, fileExt))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
	}
}
