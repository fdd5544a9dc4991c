package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/domain"
	"github.com/gorilla/websocket"
)

// Feed message types, one per ledger status.
const (
	TypeDelivered = "delivery.succeeded"
	TypeRetrying  = "delivery.retrying"
	TypeFailed    = "delivery.failed"
)

// DeliveryEvent is the live-feed view of one ledger entry.
type DeliveryEvent struct {
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	WebhookID    string    `json:"webhook_id"`
	DeliveryID   string    `json:"delivery_id"`
	EventType    string    `json:"event_type"`
	Status       string    `json:"status"`
	Attempt      int       `json:"attempt"`
	ResponseCode *int      `json:"response_code,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Detail       string    `json:"detail,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventFromDelivery converts a ledger entry for the feed. Response bodies are
// only forwarded for unsuccessful attempts.
func EventFromDelivery(d domain.Delivery) DeliveryEvent {
	ev := DeliveryEvent{
		ID:           d.ID,
		WebhookID:    d.WebhookID,
		DeliveryID:   d.DeliveryID,
		EventType:    d.EventType,
		Status:       d.Status,
		Attempt:      d.Attempts,
		ResponseCode: d.ResponseCode,
		DurationMs:   d.DurationMs,
		Timestamp:    d.CreatedAt,
	}
	switch d.Status {
	case domain.StatusSuccess:
		ev.Type = TypeDelivered
	case domain.StatusFailed:
		ev.Type = TypeFailed
		ev.Detail = d.ResponseBody
	default:
		ev.Type = TypeRetrying
		ev.Detail = d.ResponseBody
	}
	return ev
}

// Hub fans delivery events out to every connected dashboard.
type Hub struct {
	clients    map[*client]struct{}
	mu         sync.RWMutex
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin dashboard may be served from another origin; access is
			// gated by the API auth middleware instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("dashboard connected", "total_clients", n)

		case c := <-h.unregister:
			h.drop(c)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) fanOut(message []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- message:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dashboard too slow, disconnecting")
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("dashboard disconnected", "total_clients", n)
}

// Broadcast queues ev for every client. Events are dropped when the queue is full.
func (h *Hub) Broadcast(ev DeliveryEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping event", "delivery_id", ev.DeliveryID)
	}
}

// AttemptRecorded publishes a ledger entry to the feed.
func (h *Hub) AttemptRecorded(_ context.Context, d domain.Delivery) {
	h.Broadcast(EventFromDelivery(d))
}

// HandleWebSocket upgrades the request and registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
