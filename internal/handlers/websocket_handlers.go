package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"hotpot-chat/internal/auth"
	ws "hotpot-chat/internal/websocket"
	"hotpot-chat/pkg/logger"
	"hotpot-chat/pkg/response"
)

type WebSocketHandlers struct {
	hub      *ws.Hub
	chat     ws.ChatService
	upgrader websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub, chat ws.ChatService, allowedOrigins []string) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub:  hub,
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket upgrades an authenticated request. The client must send
// RegisterConnection before it receives pushes.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Int("user_id", user.ID).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, user, h.chat)
	h.hub.Attach(client)

	go client.WritePump()
	go client.ReadPump()
}

// originChecker allows same-host requests, requests without an Origin header
// and the configured origins. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	_, allowAll := set["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
