package ingest

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"camrec/internal/logging"
	"camrec/internal/metrics"
)

const defaultSendBuffer = 32

type message struct {
	kind int
	data []byte
}

type client struct {
	id     string
	remote string
	conn   *websocket.Conn
	send   chan message
	done   chan struct{}
	once   sync.Once
}

func newClient(id, remote string, conn *websocket.Conn, buffer int) *client {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &client{
		id:     id,
		remote: remote,
		conn:   conn,
		send:   make(chan message, buffer),
		done:   make(chan struct{}),
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

// Hub fans frames out to every connected client except the sender. A client
// whose send buffer is full is disconnected instead of stalling ingestion.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewHub returns an empty hub. metrics may be nil.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logging.NewComponentLogger(logger, "relay"),
		metrics: m,
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetViewers(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetViewers(n)
}

// Broadcast queues data for every client other than from and returns how many
// clients accepted it.
func (h *Hub) Broadcast(from string, kind int, data []byte) int {
	var slow []*client
	delivered := 0

	h.mu.RLock()
	for id, c := range h.clients {
		if id == from {
			continue
		}
		select {
		case <-c.done:
		case c.send <- message{kind: kind, data: data}:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow viewer",
			logging.String("client_id", c.id),
			logging.String("remote", c.remote),
			logging.String(logging.FieldEventType, "viewer_dropped"),
			logging.String(logging.FieldErrorHint, "viewer cannot keep up with the camera frame rate"),
		)
		h.remove(c)
		c.close()
	}
	return delivered
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, id)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	h.metrics.SetViewers(0)
}
