package domain

import "context"

// LogSink persists rendered log records.
// Implementations must serialize writes so a single record is never split.
type LogSink interface {
	// Write appends one record.
	Write(ctx context.Context, record LogRecord) error

	// Rotate closes the current backing file and opens a fresh one.
	Rotate(ctx context.Context) error

	// CurrentPath returns the file currently receiving writes, or "" when disabled.
	CurrentPath() string

	Close() error
}

// ScreenshotStore persists complete screenshot frames.
type ScreenshotStore interface {
	// Save writes the frame payload under a name derived from its timestamp.
	// It returns the final path of the file.
	Save(ctx context.Context, frame ScreenshotFrame) (string, error)
}

// LogObserver receives every record after it has been handed to the sink,
// together with its rendered line. Observers must not block.
type LogObserver interface {
	Observe(record LogRecord, line string)
}

// StatusProvider reports a live snapshot of the relay.
type StatusProvider interface {
	Status() RelayStatus
}
