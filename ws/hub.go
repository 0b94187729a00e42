package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/SpikeIreland/clarence-sub005/config"
	"github.com/SpikeIreland/clarence-sub005/middleware"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is the message type broadcast through the hub. Topic is the
// negotiation id the event belongs to.
type Event struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

// clientCommand represents a command sent from the client.
type clientCommand struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
}

// Client represents one connected browser session with optional
// per-negotiation subscriptions.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]bool // nil = receive all topics
	mu            sync.RWMutex
}

// Hub maintains connected clients and broadcasts negotiation events
// (document progress, document ready/error, chat messages).
type Hub struct {
	auth       *config.AuthConfig
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub. A nil auth config disables the connection gate,
// for tests and dev setups without credentials.
func NewHub(auth *config.AuthConfig) *Hub {
	return &Hub{
		auth:       auth,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("websocket client connected", "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Debug("websocket client disconnected", "total", h.ClientCount())

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("websocket marshal failed", "error", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				if client.wantsTopic(event.Topic) {
					select {
					case client.send <- data:
					default:
						close(client.send)
						delete(h.clients, client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all subscribed clients.
func (h *Hub) Broadcast(event Event) {
	h.broadcast <- event
}

// BroadcastRaw marshals data and broadcasts it as an Event.
func (h *Hub) BroadcastRaw(topic, eventType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("websocket event marshal failed", "type", eventType, "error", err)
		return
	}
	h.Broadcast(Event{Topic: topic, Type: eventType, Data: raw})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket validates the caller's token, upgrades the HTTP
// connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.checkAuth(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// checkAuth validates the connection's JWT. Browsers cannot set headers on
// a websocket dial, so the token may also arrive as a query parameter.
func (h *Hub) checkAuth(r *http.Request) bool {
	if h.auth == nil {
		return true
	}

	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	if token == "" {
		return false
	}

	_, err := middleware.ParseToken(token, h.auth)
	return err == nil
}

// wantsTopic returns true if the client should receive events for the given topic.
func (c *Client) wantsTopic(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subscriptions == nil {
		return true // nil = receive all
	}
	return c.subscriptions[topic]
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}
		c.handleCommand(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleCommand processes client commands.
func (c *Client) handleCommand(message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return
	}
	switch cmd.Type {
	case "subscribe":
		c.mu.Lock()
		if c.subscriptions == nil {
			c.subscriptions = make(map[string]bool)
		}
		for _, t := range cmd.Topics {
			c.subscriptions[t] = true
		}
		c.mu.Unlock()

	case "unsubscribe":
		c.mu.Lock()
		if c.subscriptions != nil {
			for _, t := range cmd.Topics {
				delete(c.subscriptions, t)
			}
		}
		c.mu.Unlock()
	}
}
