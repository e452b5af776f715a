// Package websocket pushes funding-rate updates to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/irfndi/funding-monitor-go/internal/services"
)

const (
	writeWait = 5 * time.Second
	// sendBuffer is how many messages a client may fall behind before it is
	// dropped.
	sendBuffer = 16
)

// client owns one connection; only its write loop writes data frames.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// HelloMessage is sent once to every new client.
type HelloMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster tracks connected clients and fans messages out to them.
type Broadcaster struct {
	clients  map[*client]struct{}
	mu       sync.Mutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewBroadcaster accepts connections from allowedOrigins; an empty list or
// "*" accepts any origin.
func NewBroadcaster(allowedOrigins []string, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Broadcaster{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
		logger: logger.With("component", "websocket"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handler upgrades the request, greets the client and keeps reading until
// the client goes away.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("WebSocket upgrade failed", "error", err.Error())
			return
		}

		hello := HelloMessage{
			Type:      "connection",
			Message:   "Connected to funding rate stream",
			Timestamp: time.Now().UTC(),
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(hello); err != nil {
			b.logger.Warn("Failed to greet websocket client", "error", err.Error())
			_ = conn.Close()
			return
		}

		c := newClient(conn)
		b.mu.Lock()
		b.clients[c] = struct{}{}
		count := len(b.clients)
		b.mu.Unlock()
		b.logger.Info("WebSocket client connected", "remote", r.RemoteAddr, "clients", count)

		go b.writeLoop(c)
		go b.readLoop(c)
	}
}

// readLoop discards client messages; it exists to notice disconnects.
func (b *Broadcaster) readLoop(c *client) {
	defer b.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writeLoop(c *client) {
	defer b.remove(c)
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				b.logger.Warn("WebSocket write failed, dropping client", "error", err.Error())
				return
			}
		}
	}
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	b.mu.Unlock()
	c.close()
	if ok {
		b.logger.Debug("WebSocket client disconnected")
	}
}

// Broadcast queues msg as JSON for every client and returns how many accepted
// it. It does not wait on the network; a client whose queue is full is
// dropped.
func (b *Broadcaster) Broadcast(msg any) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal broadcast message", "error", err.Error())
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	queued := 0
	for c := range b.clients {
		select {
		case c.send <- payload:
			queued++
		default:
			b.logger.Warn("WebSocket client too slow, dropping client")
			delete(b.clients, c)
			c.close()
		}
	}
	return queued
}

// HandleUpdate is the publisher subscription.
func (b *Broadcaster) HandleUpdate(_ context.Context, event services.UpdateEvent) {
	b.Broadcast(event)
}

func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
		delete(b.clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		if c.conn == nil {
			c.close()
			continue
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.close()
	}
}
