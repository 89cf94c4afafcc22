package domain

import "time"

// ScreenshotFrame is one fully received message from the screenshot protocol.
type ScreenshotFrame struct {
	CapturedAt string    // client-supplied, arbitrary text
	Payload    []byte    // exactly the declared payload length
	ReceivedAt time.Time // set by the relay
}

// SavedScreenshot describes a frame that was persisted.
type SavedScreenshot struct {
	Path     string
	Size     int
	Sequence uint64
}
