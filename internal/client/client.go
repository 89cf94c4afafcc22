// Package client implements the sending side of the relay's log and
// screenshot protocols.
package client

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/V4T54L/log-relay/internal/adapter/tcp"
)

// DefaultDialTimeout matches the timeout the relay's reference client used.
const DefaultDialTimeout = 5 * time.Second

// Sample is one named message of the default test suite.
type Sample struct {
	Name string
	Line string
}

// Samples exercises every level plus the untagged and app-style formats.
var Samples = []Sample{
	{"Simple message", "Hello from test client!"},
	{"Debug level", "[DEBUG] [TestClient] This is a debug message"},
	{"Info level", "[INFO] [TestClient] This is an info message"},
	{"Notice level", "[NOTICE] [TestClient] This is a notice message"},
	{"Warning level", "[WARNING] [TestClient] This is a warning message"},
	{"Error level", "[ERROR] [TestClient] This is an error message"},
	{"Fault level", "[FAULT] [TestClient] This is a fault message"},
	{"Camera log", "[INFO] [CameraManager] Camera session started"},
	{"Gemini log", "[DEBUG] [GeminiService] Analyzing frame..."},
	{"Detection", "[INFO] [GeminiService] Detected: MacBook Pro, Coffee mug, Desk lamp"},
	{"API Error", "[ERROR] [GeminiService] API error: 429 Too Many Requests"},
	{"Frame capture", "[DEBUG] [CameraManager] Frame captured: 1920x1080"},
	{"Start log", "[INFO] [App] Starting detection"},
	{"Success", "[INFO] [App] Detection complete"},
}

// PingLine is sent by the connectivity check.
const PingLine = "[INFO] [ConnectivityTest] Ping"

func dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}

// LogClient sends newline-delimited log lines. It is safe for concurrent use.
type LogClient struct {
	mu   sync.Mutex
	conn net.Conn
}

// DialLog connects to a relay log port.
func DialLog(ctx context.Context, addr string, timeout time.Duration) (*LogClient, error) {
	conn, err := dial(ctx, addr, timeout)
	if err != nil {
		return nil, err
	}
	return &LogClient{conn: conn}, nil
}

// Send writes one line; a trailing newline is added.
func (c *LogClient) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.conn.Write([]byte(strings.TrimRight(line, "\n") + "\n")); err != nil {
		return fmt.Errorf("failed to send log line: %w", err)
	}
	return nil
}

func (c *LogClient) Close() error {
	return c.conn.Close()
}

// ScreenshotClient sends length-prefixed screenshot frames.
type ScreenshotClient struct {
	mu   sync.Mutex
	conn net.Conn
}

// DialScreenshot connects to a relay screenshot port.
func DialScreenshot(ctx context.Context, addr string, timeout time.Duration) (*ScreenshotClient, error) {
	conn, err := dial(ctx, addr, timeout)
	if err != nil {
		return nil, err
	}
	return &ScreenshotClient{conn: conn}, nil
}

// Send writes one frame.
func (c *ScreenshotClient) Send(capturedAt string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tcp.WriteFrame(c.conn, capturedAt, payload)
}

func (c *ScreenshotClient) Close() error {
	return c.conn.Close()
}
