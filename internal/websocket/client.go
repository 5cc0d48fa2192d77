package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotpot-chat/internal/models"
	"hotpot-chat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
	handleTimeout  = 10 * time.Second
)

// ChatService is the part of the chat router reachable from the realtime channel.
type ChatService interface {
	CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error)
	JoinSession(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error)
	SendMessage(ctx context.Context, in models.SendMessageInput) (*models.ChatMessage, error)
	EndSession(ctx context.Context, sessionID, actorID int) (*models.ChatSession, error)
	MarkMessageRead(ctx context.Context, messageID, readerID int) (bool, error)
}

// Client is one authenticated websocket connection.
type Client struct {
	id   string
	hub  *Hub
	conn *gorillaws.Conn
	user *models.User
	chat ChatService
	log  zerolog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(hub *Hub, conn *gorillaws.Conn, user *models.User, chat ChatService) *Client {
	id := uuid.NewString()
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		user: user,
		chat: chat,
		send: make(chan []byte, sendBuffer),
		log:  logger.WithModule("websocket").With().Str("conn_id", id).Int("user_id", user.ID).Logger(),
	}
}

func (c *Client) ID() string { return c.id }

// ReadPump decodes inbound frames and handles them one at a time. It detaches
// the client when the connection ends.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
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
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return
		}

		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		c.handle(ctx, &frame)
		cancel()
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
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
				c.conn.WriteMessage(gorillaws.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(gorillaws.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendEvent(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.log.Error().Err(err).Str("event", ev.Name).Msg("failed to encode event")
		return
	}
	c.enqueue(data)
}

func (c *Client) sendError(message string) {
	c.sendEvent(models.NewEvent(models.EventChatError, message))
}

// enqueue never blocks. It reports false when the buffer is full or the client is closed.
func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
