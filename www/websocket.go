package www

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	ws "github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client is one websocket subscriber of price updates.
type Client struct {
	logger *slog.Logger
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	name   string
}

func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, name string) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		logger: hub.logger.With(slog.String("client", name)),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 16),
		name:   name,
	}, nil
}

// ReadPump keeps the read deadline alive on pongs and drops anything the
// client sends. It unregisters the client once the connection is gone.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.logger.Debug("web socket closed", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}

			if !ok {
				_ = c.conn.WriteMessage(ws.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Warn("web socket write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.logger.Debug("web socket ping failed", slog.Any("error", err))
				return
			}
		}
	}
}

// Hub keeps the connected clients and fans out price updates. A client that
// registers gets the latest update right away.
type Hub struct {
	broadcast chan []byte
	join      chan *Client
	leave     chan *Client
	done      chan struct{}
	clients   map[*Client]bool
	latest    []byte
	logger    *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		broadcast: make(chan []byte),
		join:      make(chan *Client),
		leave:     make(chan *Client),
		done:      make(chan struct{}),
		clients:   make(map[*Client]bool),
		logger:    logger,
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.join <- c:
	case <-h.done:
		close(c.send)
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.leave <- c:
	case <-h.done:
	}
}

func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.join:
			h.logger.Debug("registering client", slog.String("clientName", client.name))
			h.clients[client] = true
			if h.latest != nil {
				client.send <- h.latest
			}

		case client := <-h.leave:
			if _, ok := h.clients[client]; ok {
				h.logger.Debug("unregistering client", slog.String("clientName", client.name))
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			h.latest = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("client send buffer full, dropping message", slog.String("clientName", client.name))
				}
			}
		}
	}
}
