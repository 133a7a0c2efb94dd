package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bugx/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// Client is one WebSocket subscriber. Component narrows delivery to
// notifications for that component.
type Client struct {
	ID        string
	Component string

	conn   *websocket.Conn
	send   chan Notification
	hub    *Hub
	closed bool
	mu     sync.Mutex
}

func (c *Client) safeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// Hub tracks WebSocket subscribers and broadcasts notifications to them. It
// is also a Notifier.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Notification
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	logger     logging.Logger
}

// NewHub creates a hub; call Run to start it
func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Notification, 256),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.WithComponent("notify_hub"),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			client.safeClose()
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered", "client_id", client.ID, "total", total)

			welcome := Notification{
				ID:        uuid.New().String(),
				Type:      TypeConnection,
				Message:   "Connected to team notification stream",
				Timestamp: time.Now(),
			}
			select {
			case client.send <- welcome:
			default:
				h.removeClient(client)
			}

		case client := <-h.unregister:
			h.removeClient(client)

		case n := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.Component != "" && n.Component != "" && client.Component != n.Component {
					continue
				}
				select {
				case client.send <- n:
				default:
					h.removeClientLocked(client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.logger.Info("Notification hub shutting down")
			return
		}
	}
}

// Done is closed once Run has returned
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClientLocked(client)
}

// removeClientLocked assumes h.mu is held
func (h *Hub) removeClientLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.safeClose()
		h.logger.Info("WebSocket client disconnected", "client_id", client.ID, "total", len(h.clients))
	}
}

// Notify queues n for broadcast. A full queue drops the notification.
func (h *Hub) Notify(_ context.Context, n Notification) error {
	select {
	case h.broadcast <- n:
	default:
		h.logger.Warn("Broadcast queue full, dropping notification", "notification_id", n.ID)
	}
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and attaches the connection to the hub. The
// optional component query parameter filters notifications.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		ID:        uuid.New().String(),
		Component: r.URL.Query().Get("component"),
		conn:      conn,
		send:      make(chan Notification, sendBuffer),
		hub:       h,
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump forwards hub messages to the connection until the hub closes
// the send channel
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(n); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles subscription messages and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg map[string]interface{}
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("WebSocket read error", "client_id", c.ID, "error", err)
			}
			return
		}
		c.handleClientMessage(msg)
	}
}

func (c *Client) handleClientMessage(msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)
	switch msgType {
	case "subscribe":
		if component, ok := msg["component"].(string); ok {
			c.hub.mu.Lock()
			c.Component = component
			c.hub.mu.Unlock()
		}
	case "unsubscribe":
		c.hub.mu.Lock()
		c.Component = ""
		c.hub.mu.Unlock()
	case "ping":
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		select {
		case c.send <- Notification{Type: TypePong, Timestamp: time.Now()}:
		default:
		}
	}
}
