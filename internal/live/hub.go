// Package live pushes collection change events to connected admin
// dashboards over websockets.
package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/reggaepotato22/krugerr-brendt/internal/metrics"
)

// Hub maintains the set of connected clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger

	mu sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.remove(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.LiveConnections.Inc()
			h.logger.Info("live client connected", "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client] {
				h.remove(client)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("live client disconnected", "clients", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than stall everyone.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove requires h.mu.
func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.LiveConnections.Dec()
}

// Broadcast queues message for all clients, dropping it when the queue is
// full.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("live broadcast queue full, dropping message")
	}
}

// Register adds client. Once the hub has stopped, client is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one connected dashboard.
type Client struct {
	send chan []byte
}

func NewClient() *Client {
	return &Client{send: make(chan []byte, 64)}
}

// Send yields queued messages; it is closed when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}
