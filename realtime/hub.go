// Package realtime pushes tenant-scoped dashboard events over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dashboard/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Message is the frame written to dashboard clients.
type Message struct {
	Event    string      `json:"event"`
	TenantID string      `json:"tenantId"`
	Data     interface{} `json:"data"`
	SentAt   string      `json:"sentAt"`
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
	userID   string
}

// Hub tracks connected clients per tenant. With a Redis client, published events travel
// through Redis pub/sub so every instance delivers them to its own connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
	redis    *redis.Client
	channel  string
}

func NewHub(allowedOrigins []string, client *redis.Client, prefix string) *Hub {
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		redis:   client,
		channel: prefix + ":realtime",
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
	return h
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
			return true
		}
	}
	utils.InfoLogger.WithField("origin", origin).Warn("websocket origin rejected")
	return false
}

// Publish implements the service-side publisher. It never blocks on slow clients.
func (h *Hub) Publish(tenantID, event string, data interface{}) {
	payload, err := json.Marshal(Message{
		Event:    event,
		TenantID: tenantID,
		Data:     data,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		utils.ErrorLogger.WithError(err).WithField("event", event).Error("failed to encode realtime message")
		return
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := h.redis.Publish(ctx, h.channel, payload).Err()
		if err == nil {
			return
		}
		utils.ErrorLogger.WithError(err).Warn("redis publish failed, delivering locally")
	}
	h.deliver(tenantID, payload)
}

// Run relays messages from Redis to local clients until ctx is done. Without Redis it
// returns immediately.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.Subscribe(ctx, h.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		utils.ErrorLogger.WithError(err).Error("failed to subscribe to realtime channel")
		return
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope struct {
				TenantID string `json:"tenantId"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil || envelope.TenantID == "" {
				continue
			}
			h.deliver(envelope.TenantID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) deliver(tenantID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[tenantID] {
		select {
		case c.send <- payload:
		default:
			// slow consumer, its writer will notice the closed channel
			go h.unregister(c)
		}
	}
}

// ClientCount returns the number of live connections of a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.tenantID] == nil {
		h.clients[c.tenantID] = make(map[*Client]struct{})
	}
	h.clients[c.tenantID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.tenantID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.tenantID)
	}
	close(c.send)
}

// Serve upgrades the request and streams the tenant's events until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID, userID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		tenantID: tenantID,
		userID:   userID,
	}
	h.register(c)
	utils.InfoLogger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"user_id":   userID,
	}).Info("realtime client connected")

	go c.writePump()
	c.readPump()
	return nil
}

// readPump only handles control frames; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
