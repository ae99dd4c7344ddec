package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paddock-market/internal/domain"
)

// Message types
const (
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypeSubscriptions = "subscriptions"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string       `json:"type"`
	Sport     domain.Sport `json:"sport,omitempty"`
	Message   string       `json:"message,omitempty"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Subscribed clients by sport
	clients map[domain.Sport]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	sport  domain.Sport
}

// NewHub creates a new Hub. allowedOrigins restricts browser origins for
// upgrades; empty allows all.
func NewHub(logger *slog.Logger, allowedOrigins ...string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[domain.Sport]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for sport, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, sport)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.sport]; !ok {
				h.clients[req.sport] = make(map[*Client]bool)
			}
			h.clients[req.sport][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "sport", req.sport)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.sport]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.sport)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "sport", req.sport)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to the subscribers of its sport, or to
// every client when it carries no sport.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	targets := h.allClients
	if message.Sport != "" {
		targets = h.clients[message.Sport]
	}
	for client := range targets {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// Notify implements service.Notifier. Critical errors reach every client;
// other notifications reach the subscribers of their sport. It never blocks.
func (h *Hub) Notify(n domain.Notification) {
	message := &Message{
		Type:      string(n.Kind),
		Sport:     n.Sport,
		Message:   n.Message,
		Data:      n.Data,
		Timestamp: n.Timestamp,
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	if n.Kind == domain.NotificationCritical {
		if message.Data == nil {
			message.Data = map[string]domain.Sport{"sport": n.Sport}
		}
		message.Sport = ""
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "kind", n.Kind)
	}
}

// Register adds a client to the hub. It returns without effect once the hub
// is stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Subscribe adds a client to a sport subscription
func (h *Hub) Subscribe(client *Client, sport domain.Sport) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, sport: sport}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes a client from a sport subscription
func (h *Hub) Unsubscribe(client *Client, sport domain.Sport) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, sport: sport}:
	case <-h.ctx.Done():
	}
}

// GetSubscriberCount returns the number of subscribers for a sport
func (h *Hub) GetSubscriberCount(sport domain.Sport) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sport])
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
