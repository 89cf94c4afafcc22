package mocks

import (
	"context"
	"sync"

	"github.com/V4T54L/log-relay/internal/domain"
)

// MockLogSink is a mock implementation of domain.LogSink for testing.
type MockLogSink struct {
	mu        sync.Mutex
	Records   []domain.LogRecord
	Rotations int
	Path      string
	Closed    bool
	WriteErr  error
	RotateErr error
}

func (m *MockLogSink) Write(ctx context.Context, record domain.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Records = append(m.Records, record)
	return nil
}

func (m *MockLogSink) Rotate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RotateErr != nil {
		return m.RotateErr
	}
	m.Rotations++
	return nil
}

func (m *MockLogSink) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Path
}

func (m *MockLogSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// RotationCount returns the number of successful rotations so far.
func (m *MockLogSink) RotationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Rotations
}

// Snapshot returns a copy of the written records.
func (m *MockLogSink) Snapshot() []domain.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LogRecord, len(m.Records))
	copy(out, m.Records)
	return out
}

// MockScreenshotStore is a mock implementation of domain.ScreenshotStore.
type MockScreenshotStore struct {
	mu      sync.Mutex
	Frames  []domain.ScreenshotFrame
	SaveErr error
}

func (m *MockScreenshotStore) Save(ctx context.Context, frame domain.ScreenshotFrame) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return "", m.SaveErr
	}
	m.Frames = append(m.Frames, frame)
	return "/mock/" + frame.CapturedAt, nil
}

// Snapshot returns a copy of the saved frames.
func (m *MockScreenshotStore) Snapshot() []domain.ScreenshotFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ScreenshotFrame, len(m.Frames))
	copy(out, m.Frames)
	return out
}

// MockObserver records every observed line.
type MockObserver struct {
	mu      sync.Mutex
	Lines   []string
	Records []domain.LogRecord
}

func (m *MockObserver) Observe(record domain.LogRecord, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	m.Lines = append(m.Lines, line)
}

// Snapshot returns a copy of the observed lines.
func (m *MockObserver) Snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Lines))
	copy(out, m.Lines)
	return out
}
