package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ticketchat/logger"
	"ticketchat/models"
	"ticketchat/transcript"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 10 * time.Second
	sendBufSize = 64

	defaultRetryMin = 500 * time.Millisecond
	defaultRetryMax = 30 * time.Second
)

// ErrSocketClosed is returned by a Socket after Close
var ErrSocketClosed = errors.New("socket closed")

// SocketManager hands out one Socket per tenant
type SocketManager struct {
	url    string
	dialer *websocket.Dialer
	log    logger.Logger

	retryMin time.Duration
	retryMax time.Duration

	mu      sync.Mutex
	sockets map[string]*Socket
}

// SocketOption customises a SocketManager
type SocketOption func(*SocketManager)

// WithRetry sets the first and the longest wait between reconnect attempts
func WithRetry(min, max time.Duration) SocketOption {
	return func(m *SocketManager) {
		m.retryMin, m.retryMax = min, max
	}
}

// NewSocketManager creates a manager dialling wsURL
func NewSocketManager(wsURL string, log logger.Logger, opts ...SocketOption) *SocketManager {
	if log == nil {
		log = logger.Nop()
	}
	m := &SocketManager{
		url:      wsURL,
		dialer:   websocket.DefaultDialer,
		log:      log,
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
		sockets:  make(map[string]*Socket),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetSocket returns the tenant's socket. The connection is dialled on first Subscribe.
func (m *SocketManager) GetSocket(tenantID string) *Socket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sockets[tenantID]; ok {
		return s
	}
	s := &Socket{
		tenantID: tenantID,
		url:      m.url,
		dialer:   m.dialer,
		log:      m.log.With(logger.F("tenant_id", tenantID)),
		retryMin: m.retryMin,
		retryMax: m.retryMax,
		stop:     make(chan struct{}),
		handlers: make(map[string]map[string]func([]byte)),
	}
	m.sockets[tenantID] = s
	return s
}

// Close closes every socket handed out so far
func (m *SocketManager) Close() {
	m.mu.Lock()
	sockets := m.sockets
	m.sockets = make(map[string]*Socket)
	m.mu.Unlock()
	for _, s := range sockets {
		s.Close()
	}
}

type wsConn struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsConn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// Socket is a tenant's connection to the real-time channel server.
// It implements transcript.Feed. A dropped connection is redialled with
// capped exponential backoff while any channel has handlers.
type Socket struct {
	tenantID string
	url      string
	dialer   *websocket.Dialer
	log      logger.Logger
	retryMin time.Duration
	retryMax time.Duration
	stop     chan struct{}

	mu       sync.Mutex
	conn     *wsConn
	closed   bool
	handlers map[string]map[string]func([]byte) // channel -> subscription id -> handler
}

type socketSubscription struct {
	socket  *Socket
	channel string
	id      string
}

func (s *socketSubscription) Unsubscribe() error {
	return s.socket.unsubscribe(s.channel, s.id)
}

// Subscribe registers handler for channel, dialling the server if needed.
// Events are delivered from a single read loop, in arrival order.
func (s *Socket) Subscribe(ctx context.Context, channel string, handler func([]byte)) (transcript.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSocketClosed
	}
	c, err := s.connectLocked(ctx)
	if err != nil {
		return nil, err
	}

	subs, ok := s.handlers[channel]
	if !ok {
		subs = make(map[string]func([]byte))
		s.handlers[channel] = subs
		if err := s.enqueue(c, models.FrameSubscribe, channel); err != nil {
			delete(s.handlers, channel)
			return nil, err
		}
	}
	id := uuid.NewString()
	subs[id] = handler
	return &socketSubscription{socket: s, channel: channel, id: id}, nil
}

func (s *Socket) unsubscribe(channel, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs, ok := s.handlers[channel]
	if !ok {
		return nil
	}
	delete(subs, id)
	if len(subs) > 0 {
		return nil
	}
	delete(s.handlers, channel)
	if s.conn == nil {
		return nil
	}
	return s.enqueue(s.conn, models.FrameUnsubscribe, channel)
}

// Close drops the connection; later Subscribe calls fail
func (s *Socket) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	c := s.conn
	s.conn = nil
	s.mu.Unlock()
	if c != nil {
		c.shutdown()
	}
}

func (s *Socket) connectLocked(ctx context.Context) (*wsConn, error) {
	if s.conn != nil {
		return s.conn, nil
	}

	u, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := u.Query()
	q.Set("companyId", s.tenantID)
	u.RawQuery = q.Encode()

	ws, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial socket: %w", err)
	}

	c := &wsConn{
		ws:   ws,
		send: make(chan []byte, sendBufSize),
		done: make(chan struct{}),
	}
	s.conn = c
	go s.writePump(c)
	go s.readPump(c)

	// channels already subscribed when redialling
	for channel := range s.handlers {
		if err := s.enqueue(c, models.FrameSubscribe, channel); err != nil {
			return nil, err
		}
	}
	s.log.Info(ctx, "socket connected")
	return c, nil
}

func (s *Socket) enqueue(c *wsConn, frameType, channel string) error {
	data, err := json.Marshal(models.WebSocketMessage{Type: frameType, Channel: channel})
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrSocketClosed
	default:
		return fmt.Errorf("socket send buffer full")
	}
}

func (s *Socket) readPump(c *wsConn) {
	defer func() {
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
		}
		redial := !s.closed && s.conn == nil && len(s.handlers) > 0
		s.mu.Unlock()
		c.shutdown()
		if redial {
			go s.reconnect()
		}
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn(context.Background(), "socket read failed", logger.F("error", err))
			}
			return
		}

		var frame models.WebSocketMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug(context.Background(), "dropping malformed frame", logger.F("error", err))
			continue
		}
		if frame.Type != models.FrameEvent {
			continue
		}
		for _, h := range s.handlersFor(frame.Channel) {
			h(frame.Payload)
		}
	}
}

// reconnect redials until a connection is up, the socket is closed
// or no channel needs one any more
func (s *Socket) reconnect() {
	delay := s.retryMin
	for {
		select {
		case <-time.After(delay):
		case <-s.stop:
			return
		}

		s.mu.Lock()
		if s.closed || s.conn != nil || len(s.handlers) == 0 {
			s.mu.Unlock()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		_, err := s.connectLocked(ctx)
		cancel()
		s.mu.Unlock()
		if err == nil {
			return
		}

		delay *= 2
		if delay > s.retryMax {
			delay = s.retryMax
		}
		s.log.Warn(context.Background(), "socket reconnect failed", logger.F("retry_in", delay.String()), logger.F("error", err))
	}
}

func (s *Socket) writePump(c *wsConn) {
	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (s *Socket) handlersFor(channel string) []func([]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.handlers[channel]
	out := make([]func([]byte), 0, len(subs))
	for _, h := range subs {
		out = append(out, h)
	}
	return out
}
