// Package feed streams audit entries to websocket subscribers.
package feed

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppiankov/stewardgate/internal/audit"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// DefaultBuffer is the number of entries queued per client before the
	// client is dropped as too slow.
	DefaultBuffer = 64
	// DefaultMaxClients caps concurrent subscribers.
	DefaultMaxClients = 100
)

type client struct {
	conn *websocket.Conn
	send chan audit.Entry
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans audit entries out to connected websocket clients. Observe never
// blocks: a client whose buffer is full is disconnected.
type Hub struct {
	upgrader   websocket.Upgrader
	buffer     int
	maxClients int
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. Zero buffer or maxClients use the defaults.
func NewHub(buffer, maxClients int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		buffer:     buffer,
		maxClients: maxClients,
		logger:     logger,
		clients:    make(map[*client]struct{}),
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Observe queues the entry for every subscriber.
func (h *Hub) Observe(e audit.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			h.logger.Warn("dropping slow audit feed client", "remote", c.conn.RemoteAddr().String())
			delete(h.clients, c)
			c.close()
		}
	}
}

// ServeHTTP upgrades the request and streams entries until the client
// disconnects or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := len(h.clients) >= h.maxClients
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}
	if full {
		http.Error(w, "maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan audit.Entry, h.buffer)}
	if reason := h.add(c); reason != "" {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go h.readLoop(c)
	h.writeLoop(c)
}

// add registers c unless the hub closed or filled up during the upgrade.
// It returns the refusal reason, or "" when c was added.
func (h *Hub) add(c *client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.closed:
		return "feed closed"
	case len(h.clients) >= h.maxClients:
		return "maximum clients reached"
	}
	h.clients[c] = struct{}{}
	return ""
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readLoop discards client messages; it exists to process pongs and to
// notice disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("audit feed read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}
