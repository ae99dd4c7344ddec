package websocket

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/paddock-market/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBufferSize = 64
)

// Client is one browser connection. Its sports set is only touched by the
// read goroutine; the hub keeps its own index for broadcasting.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	sports map[domain.Sport]bool
}

// ClientMessage represents a message from the client. Sport and Sports may
// be combined.
type ClientMessage struct {
	Type   string   `json:"type"`
	Sport  string   `json:"sport,omitempty"`
	Sports []string `json:"sports,omitempty"`
}

func (m *ClientMessage) requested() []string {
	out := append([]string(nil), m.Sports...)
	if m.Sport != "" {
		out = append(out, m.Sport)
	}
	return out
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     uuid.New().String(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		sports: make(map[domain.Sport]bool),
	}
}

// originChecker accepts every origin when the list is empty, otherwise only
// listed hosts. Requests without an Origin header are not from browsers and
// pass.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	hosts := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts[strings.ToLower(u.Host)] = true
			continue
		}
		hosts[strings.ToLower(o)] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return hosts[strings.ToLower(u.Host)]
	}
}

// readPump reads client commands until the connection fails
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(Message{Type: MessageTypeError, Message: "invalid message format"})
			continue
		}
		c.handleMessage(&msg)
	}
}

// handleMessage processes incoming client messages
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		requested := msg.requested()
		if len(requested) == 0 {
			c.reply(Message{Type: MessageTypeError, Message: "sport required for " + msg.Type})
			return
		}
		sports := make([]domain.Sport, 0, len(requested))
		for _, s := range requested {
			sport, err := domain.ParseSport(s)
			if err != nil {
				c.reply(Message{Type: MessageTypeError, Message: "unknown sport " + s})
				return
			}
			sports = append(sports, sport)
		}

		for _, sport := range sports {
			if msg.Type == MessageTypeSubscribe {
				c.sports[sport] = true
				c.hub.Subscribe(c, sport)
			} else {
				delete(c.sports, sport)
				c.hub.Unsubscribe(c, sport)
			}
		}
		c.reply(Message{Type: msg.Type + "d", Data: c.subscriptions()})

	case MessageTypeSubscriptions:
		c.reply(Message{Type: MessageTypeSubscriptions, Data: c.subscriptions()})

	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong})

	default:
		c.reply(Message{Type: MessageTypeError, Message: "unknown message type " + msg.Type})
	}
}

func (c *Client) subscriptions() []domain.Sport {
	out := make([]domain.Sport, 0, len(c.sports))
	for s := range c.sports {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// reply queues a direct answer to this client, dropping it when the buffer is full
func (c *Client) reply(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("failed to marshal reply", "client_id", c.id, "error", err)
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("client buffer full, dropping reply", "client_id", c.id, "type", msg.Type)
	}
}

// writePump writes queued messages, one JSON document per frame, and keeps
// the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs upgrades the request and attaches the connection to the hub
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(h, conn)
	h.Register(client)

	go client.writePump()
	go client.readPump()

	h.logger.Debug("new websocket connection", "client_id", client.id)
}
