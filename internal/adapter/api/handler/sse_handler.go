package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/V4T54L/log-relay/internal/domain"
)

const clientBufferSize = 256

// SSEMessage is the periodic throughput event sent to tail subscribers.
type SSEMessage struct {
	Rate float64 `json:"rate"`
}

// SSEBroker streams rendered log lines to Server-Sent Events subscribers.
type SSEBroker struct {
	logger   *slog.Logger
	clients  map[chan []byte]struct{}
	mu       sync.RWMutex
	observed atomic.Int64
	closed   bool
}

var _ domain.LogObserver = (*SSEBroker)(nil)

// NewSSEBroker creates a new SSEBroker and starts its processing loop.
// All subscribers are disconnected when ctx is done.
func NewSSEBroker(ctx context.Context, logger *slog.Logger) *SSEBroker {
	broker := &SSEBroker{
		logger:  logger.With("component", "sse_broker"),
		clients: make(map[chan []byte]struct{}),
	}
	go broker.run(ctx)
	return broker
}

// ServeHTTP handles new client connections for the SSE stream.
func (b *SSEBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}

	messageChan := make(chan []byte, clientBufferSize)
	if !b.addClient(messageChan) {
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.removeClient(messageChan)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messageChan:
			if !ok {
				return // Channel was closed
			}
			w.Write(msg)
			flusher.Flush()
		}
	}
}

// Observe forwards one rendered line to every subscriber. Slow subscribers miss lines.
func (b *SSEBroker) Observe(_ domain.LogRecord, line string) {
	b.observed.Add(1)
	line = strings.ReplaceAll(line, "\r", " ")
	b.broadcast([]byte("data: " + line + "\n\n"))
}

// Subscribers returns the number of connected clients.
func (b *SSEBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *SSEBroker) addClient(client chan []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.clients[client] = struct{}{}
	b.logger.Info("SSE client connected")
	return true
}

func (b *SSEBroker) removeClient(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
		b.logger.Info("SSE client disconnected")
	}
}

func (b *SSEBroker) broadcast(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- msg:
		default:
			// Client channel is full, maybe slow client.
			// We don't block the broadcast for one slow client.
		}
	}
}

func (b *SSEBroker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for client := range b.clients {
		delete(b.clients, client)
		close(client)
	}
}

// run is the main processing loop for the broker.
func (b *SSEBroker) run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastTimestamp := time.Now()

	for {
		select {
		case <-ctx.Done():
			b.closeAll()
			return
		case <-ticker.C:
			now := time.Now()
			count := b.observed.Swap(0)
			duration := now.Sub(lastTimestamp).Seconds()
			rate := 0.0
			if duration > 0 {
				rate = float64(count) / duration
			}

			jsonData, err := json.Marshal(SSEMessage{Rate: rate})
			if err != nil {
				b.logger.Error("Failed to marshal SSE message", "error", err)
				continue
			}

			b.broadcast([]byte(fmt.Sprintf("event: rate\ndata: %s\n\n", jsonData)))

			// Reset for the next interval
			lastTimestamp = now
		}
	}
}
