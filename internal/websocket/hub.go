package websocket

import (
	"encoding/json"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hotpot-chat/internal/models"
	"hotpot-chat/internal/presence"
	"hotpot-chat/pkg/logger"
	"hotpot-chat/pkg/metrics"
)

// Hub owns the live websocket clients of this process and delivers frames to
// them by connection id or by group.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *presence.Registry
	groups   *presence.Groups
	log      zerolog.Logger
}

func NewHub(registry *presence.Registry, groups *presence.Groups) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		groups:   groups,
		log:      logger.WithModule("websocket"),
	}
}

// Attach makes the client addressable by its connection id.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	metrics.LiveConnections.Inc()
	h.log.Debug().Str("conn_id", c.id).Int("user_id", c.user.ID).Msg("client connected")
}

// Detach forgets the client, drops it from presence and its groups, and tells
// managers when the user went offline.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.LiveConnections.Dec()
	c.closeSend()

	h.groups.LeaveAll(c.id)
	userID, wasLive := h.registry.Unregister(c.id)
	if !wasLive {
		h.log.Debug().Str("conn_id", c.id).Msg("client disconnected")
		return
	}

	h.log.Info().Str("conn_id", c.id).Int("user_id", userID).Msg("user went offline")
	h.BroadcastToGroup(models.GroupManagers, models.NewEvent(models.EventUserDisconnected, userID))
}

// RegisterConnection binds the client's user to this connection and joins the
// group for the user's role. An earlier connection of the same user stops
// receiving pushes and leaves its groups.
func (h *Hub) RegisterConnection(c *Client) {
	group := c.user.Role.Group()

	if previous, ok := h.registry.TryResolve(c.user.ID); ok && previous != c.id {
		h.groups.LeaveAll(previous)
	}
	h.registry.Register(c.user.ID, c.id)
	h.groups.Join(c.id, group)

	h.log.Info().Str("conn_id", c.id).Int("user_id", c.user.ID).Str("group", group).Msg("connection registered")
}

func (h *Hub) SendToConnection(connID string, ev models.Event) bool {
	data, ok := h.encode(ev)
	if !ok {
		return false
	}

	h.mu.RLock()
	c, found := h.clients[connID]
	h.mu.RUnlock()
	if !found {
		return false
	}
	return h.deliver(c, data)
}

func (h *Hub) BroadcastToGroup(group string, ev models.Event) int {
	return h.BroadcastToGroupExcept(group, "", ev)
}

func (h *Hub) BroadcastToGroupExcept(group, exceptConnID string, ev models.Event) int {
	data, ok := h.encode(ev)
	if !ok {
		return 0
	}

	members := h.groups.Members(group)
	targets := make([]*Client, 0, len(members))

	h.mu.RLock()
	for _, connID := range members {
		if connID == exceptConnID {
			continue
		}
		if c, found := h.clients[connID]; found {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if h.deliver(c, data) {
			delivered++
		}
	}
	return delivered
}

// Online returns the number of attached clients.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	deadline := time.Now().Add(writeWait)
	msg := gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		if c.conn != nil {
			_ = c.conn.WriteControl(gorillaws.CloseMessage, msg, deadline)
			_ = c.conn.Close()
		}
	}
}

// deliver queues data for c. A client whose buffer is full is disconnected.
func (h *Hub) deliver(c *Client, data []byte) bool {
	if c.enqueue(data) {
		return true
	}
	h.log.Warn().Str("conn_id", c.id).Int("user_id", c.user.ID).Msg("send buffer full, closing slow client")
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return false
}

func (h *Hub) encode(ev models.Event) ([]byte, bool) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("event", ev.Name).Msg("failed to encode event")
		return nil, false
	}
	return data, true
}
