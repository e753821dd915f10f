package websockets

import (
	"sync/atomic"
	"time"

	"bikey/config"
	"bikey/internal/events"
	"bikey/internal/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	MESSAGE_TYPE_PING    = "ping"
	MESSAGE_TYPE_PONG    = "pong"
	MESSAGE_TYPE_MESSAGE = "message"
	MESSAGE_TYPE_ERROR   = "error"
	PING_INTERVAL        = 30 * time.Second
	PONG_TIMEOUT         = 60 * time.Second
	WRITE_TIMEOUT        = 10 * time.Second
	MAX_MESSAGE_SIZE     = 64 * 1024
	SEND_CHANNEL_SIZE    = 64
	SYSTEM_CHANNEL       = "system"
)

type Message struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Channel   string         `json:"channel,omitempty"`
	Action    string         `json:"action,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func newMessage(messageType, channel, action string, data map[string]any) Message {
	return Message{
		ID:        uuid.New().String(),
		Type:      messageType,
		Channel:   channel,
		Action:    action,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// TokenValidator checks the bearer token a client sends in its auth response.
type TokenValidator interface {
	Enabled() bool
	Validate(token string) (*jwt.RegisteredClaims, error)
}

type Client struct {
	ID         string
	Subject    string
	Connection *websocket.Conn
	Manager    *Manager
	status     atomic.Int32
	send       chan Message
}

func (c *Client) Status() int {
	return int(c.status.Load())
}

func (c *Client) setStatus(status int) {
	c.status.Store(int32(status))
}

// Manager streams import and ride events to connected clients.
type Manager struct {
	hub      *Hub
	config   config.Config
	log      logger.Logger
	eventBus *events.EventBus
	tokens   TokenValidator
}

func New(
	eventBus *events.EventBus,
	tokens TokenValidator,
	config config.Config,
) (*Manager, error) {
	log := logger.New("websockets")

	manager := &Manager{
		hub:      newHub(),
		config:   config,
		log:      log,
		eventBus: eventBus,
		tokens:   tokens,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	for _, channel := range []events.Channel{events.IMPORT_CHANNEL, events.RIDE_CHANNEL} {
		if err := eventBus.Subscribe(channel, manager.forwardEvent); err != nil {
			return nil, log.Err("failed to subscribe to events", err, "channel", channel)
		}
	}

	return manager, nil
}

func (m *Manager) authRequired() bool {
	return m.tokens != nil && m.tokens.Enabled()
}

func (m *Manager) newClient(c *websocket.Conn) *Client {
	client := &Client{
		ID:         uuid.New().String(),
		Connection: c,
		Manager:    m,
		send:       make(chan Message, SEND_CHANNEL_SIZE),
	}
	if m.authRequired() {
		client.setStatus(STATUS_UNAUTHENTICATED)
	} else {
		client.setStatus(STATUS_AUTHENTICATED)
	}
	return client
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	client := m.newClient(c)

	if client.Status() == STATUS_UNAUTHENTICATED {
		if err := client.sendAuthRequest(); err != nil {
			_ = c.Close()
			return
		}
		client.startAuthTimeout()
	} else {
		client.send <- newMessage(AUTH_SUCCESS, SYSTEM_CHANNEL, "authenticated", nil)
	}

	m.hub.register <- client
	defer func() {
		log.Debug("Client disconnected", "clientID", client.ID)
		m.hub.unregister <- client
	}()

	go client.writePump()
	client.readPump()
}

// forwardEvent relays a bus event to every authenticated client.
func (m *Manager) forwardEvent(event events.Event) error {
	message := Message{
		ID:        event.ID,
		Type:      string(event.Type),
		Channel:   event.Channel.String(),
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
	m.BroadcastMessage(message)
	return nil
}

func (m *Manager) BroadcastMessage(message Message) {
	log := m.log.Function("BroadcastMessage")

	select {
	case m.hub.broadcast <- message:
	default:
		log.Warn("Broadcast channel is full, dropping message", "messageID", message.ID)
	}
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		return c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			return
		}

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	log := c.Manager.log.Function("routeMessage")

	if message.Type == AUTH_RESPONSE {
		c.handleAuthResponse(message)
		return
	}

	if c.Status() != STATUS_AUTHENTICATED {
		c.handleUnauthenticatedMessage(message)
		return
	}

	switch message.Type {
	case MESSAGE_TYPE_PING:
		c.trySend(newMessage(MESSAGE_TYPE_PONG, SYSTEM_CHANNEL, "", nil))
	default:
		log.Debug("Ignoring client message", "clientID", c.ID, "type", message.Type)
	}
}

// trySend queues a message without blocking the caller.
func (c *Client) trySend(message Message) bool {
	defer func() { _ = recover() }()

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
