package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"ticketchat/logger"
	"ticketchat/middleware"
	"ticketchat/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Relay forwards published events to another transport, e.g. Redis
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Client represents a WebSocket client of one tenant
type Client struct {
	Conn     *websocket.Conn
	Send     chan []byte
	TenantID string
	hub      *Hub
}

// Hub maintains the channel subscriptions of connected clients
type Hub struct {
	mutex    sync.RWMutex
	channels map[string]map[*Client]bool
	clients  map[*Client]bool
	relay    Relay
	log      logger.Logger
}

// NewHub creates a hub; relay may be nil
func NewHub(relay Relay, log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		channels: make(map[string]map[*Client]bool),
		clients:  make(map[*Client]bool),
		relay:    relay,
		log:      log,
	}
}

// Subscribers counts clients subscribed to channel
func (h *Hub) Subscribers(channel string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.channels[channel])
}

// Publish sends payload as an event frame to every subscriber of channel
func (h *Hub) Publish(ctx context.Context, channel string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(models.WebSocketMessage{
		Type:    models.FrameEvent,
		Channel: channel,
		Payload: raw,
	})
	if err != nil {
		return err
	}

	h.mutex.RLock()
	for client := range h.channels[channel] {
		select {
		case client.Send <- frame:
		default:
			h.log.Warn(ctx, "dropping event for slow client", logger.F("channel", channel))
		}
	}
	h.mutex.RUnlock()
	eventsPublished.WithLabelValues(channelKind(channel)).Inc()

	if h.relay != nil {
		if err := h.relay.Publish(ctx, channel, raw); err != nil {
			h.log.Error(ctx, "relay publish failed", logger.F("channel", channel), logger.F("error", err))
		}
	}
	return nil
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	h.clients[c] = true
	h.mutex.Unlock()
	connectedClients.Inc()
}

func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for channel, subs := range h.channels {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.channels, channel)
			}
		}
		close(c.Send)
		connectedClients.Dec()
	}
	h.mutex.Unlock()
}

func (h *Hub) subscribe(c *Client, channel string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]bool)
		h.channels[channel] = subs
	}
	subs[c] = true
}

func (h *Hub) unsubscribe(c *Client, channel string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// HandleWebSocket upgrades the request and serves channel subscriptions for its tenant
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantFromContext(r.Context())
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "companyId is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "WebSocket upgrade error", logger.F("error", err))
		return
	}

	client := &Client{
		Conn:     conn,
		Send:     make(chan []byte, 256),
		TenantID: tenantID,
		hub:      h,
	}
	h.register(client)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// owns reports whether channel belongs to the client's tenant
func (c *Client) owns(channel string) bool {
	return strings.HasPrefix(channel, "company-"+c.TenantID+"-")
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn(context.Background(), "WebSocket error", logger.F("error", err))
			}
			break
		}

		var wsMsg models.WebSocketMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			continue
		}
		if !c.owns(wsMsg.Channel) {
			continue
		}

		switch wsMsg.Type {
		case models.FrameSubscribe:
			c.hub.subscribe(c, wsMsg.Channel)
		case models.FrameUnsubscribe:
			c.hub.unsubscribe(c, wsMsg.Channel)
		}
	}
}

func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func channelKind(channel string) string {
	if i := strings.LastIndex(channel, "-"); i >= 0 {
		return channel[i+1:]
	}
	return channel
}
