package ingest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"camrec/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// FrameSink receives every inbound frame payload.
type FrameSink interface {
	Accept(payload []byte) bool
}

// Options configures an Endpoint.
type Options struct {
	// ReadLimit caps a single inbound message; zero leaves gorilla's default.
	ReadLimit int64
	// SendBuffer is the per-client outbound queue depth.
	SendBuffer int
}

// Endpoint upgrades HTTP requests to WebSocket connections. Every binary or
// text message is one opaque frame: it goes to the sink and is relayed to all
// other connected clients.
type Endpoint struct {
	sink     FrameSink
	hub      *Hub
	opts     Options
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEndpoint returns an endpoint feeding sink and relaying through hub.
func NewEndpoint(sink FrameSink, hub *Hub, opts Options, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		sink: sink,
		hub:  hub,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

// Hub returns the relay hub.
func (e *Endpoint) Hub() *Hub { return e.hub }

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("websocket upgrade failed",
			logging.String("remote", r.RemoteAddr),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ws_upgrade_failed"),
			logging.String(logging.FieldErrorHint, "client must speak the WebSocket protocol"),
		)
		return
	}

	c := newClient(uuid.NewString(), r.RemoteAddr, conn, e.opts.SendBuffer)
	logger := e.logger.With(logging.String("client_id", c.id), logging.String("remote", c.remote))
	e.hub.add(c)
	logger.Info("client connected", logging.Int("clients", e.hub.Len()))

	go e.writePump(c, logger)
	e.readPump(c, logger)

	e.hub.remove(c)
	c.close()
	logger.Info("client disconnected", logging.Int("clients", e.hub.Len()))
}

func (e *Endpoint) readPump(c *client, logger *slog.Logger) {
	if e.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(e.opts.ReadLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("websocket closed unexpectedly",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ws_closed_unexpectedly"),
					logging.String(logging.FieldErrorHint, "check client network stability"),
				)
			} else {
				logger.Debug("websocket read ended", logging.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind != websocket.BinaryMessage && kind != websocket.TextMessage {
			continue
		}
		e.hub.Broadcast(c.id, kind, data)
		e.sink.Accept(data)
	}
}

func (e *Endpoint) writePump(c *client, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				logger.Debug("websocket write failed", logging.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}
