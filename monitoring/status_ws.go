// Package monitoring broadcasts model status and forecast events to
// WebSocket dashboard clients.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	heartbeatInterval = 30 * time.Second
	writeWait         = 10 * time.Second
)

// Message is one event pushed to clients.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// Hub fans events out to all connected WebSocket clients and implements
// the forecast service's EventPublisher.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	nextID     int
}

// NewHub creates an idle hub; call Start in a goroutine to run it.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the hub loop until Stop.
func (h *Hub) Start() {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			zap.S().Debugw("ws client connected", "client", c.id, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			zap.S().Debugw("ws client disconnected", "client", c.id, "total", len(h.clients))

		case payload := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}

		case <-heartbeat.C:
			h.Publish("heartbeat", map[string]interface{}{"clients": len(h.clients)})

		case <-h.ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		}
	}
}

// Stop shuts the hub down and disconnects all clients.
func (h *Hub) Stop() {
	h.cancel()
}

// Publish broadcasts an event to every client. Messages are dropped when
// the queue is full rather than blocking the publisher.
func (h *Hub) Publish(eventType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	})
	if err != nil {
		zap.S().Warnw("ws message marshal failed", "type", eventType, "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		zap.S().Debugw("ws broadcast queue full, dropping message", "type", eventType)
	}
}

// HandleWS upgrades an HTTP request and attaches the client to the hub.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("ws upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.nextID++
	id := fmt.Sprintf("client-%d", h.nextID)
	h.mu.Unlock()

	c := &client{conn: conn, send: make(chan []byte, 64), id: id}
	h.register <- c

	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains client messages so control frames are processed and
// unregisters on disconnect. The unregister send races hub shutdown, so
// it yields once the hub context is cancelled.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
