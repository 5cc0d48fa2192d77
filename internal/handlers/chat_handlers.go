package handlers

import (
	"net/http"
	"strconv"

	"hotpot-chat/internal/auth"
	"hotpot-chat/internal/models"
	"hotpot-chat/internal/services"
	"hotpot-chat/pkg/response"
)

const defaultPageSize = 20

type ChatHandlers struct {
	router *services.ChatRouter
}

func NewChatHandlers(router *services.ChatRouter) *ChatHandlers {
	return &ChatHandlers{router: router}
}

// POST /chat/sessions
func (h *ChatHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req models.CreateSessionRequest
	if !bind(w, r, &req) {
		return
	}

	session, err := h.router.CreateSession(r.Context(), userID, req.Topic)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, "chat session created", session)
}

// GET /chat/sessions?active_only=
func (h *ChatHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))
	sessions, err := h.router.GetUserSessions(r.Context(), userID, activeOnly)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "ok", nonNil(sessions))
}

// GET /chat/sessions/pending
func (h *ChatHandlers) ListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "missing identity")
		return
	}
	if user.Role != models.RoleManager && user.Role != models.RoleAdmin {
		response.Unauthorized(w, "only managers can view pending chat sessions")
		return
	}

	page, pageSize, err := paging(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	sessions, err := h.router.GetPendingSessions(r.Context(), page, pageSize)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "ok", nonNil(sessions))
}

// GET /chat/sessions/{sessionID}
func (h *ChatHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.visibleSession(w, r)
	if !ok {
		return
	}
	response.OK(w, "ok", session)
}

// POST /chat/sessions/{sessionID}/join
func (h *ChatHandlers) JoinSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		response.Error(w, r, err)
		return
	}

	session, err := h.router.JoinSession(r.Context(), sessionID, userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "chat session accepted", session)
}

// POST /chat/sessions/{sessionID}/end
func (h *ChatHandlers) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		response.Error(w, r, err)
		return
	}

	session, err := h.router.EndSession(r.Context(), sessionID, userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "chat session ended", session)
}

// GET /chat/sessions/{sessionID}/messages?page=&page_size=
func (h *ChatHandlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	session, ok := h.visibleSession(w, r)
	if !ok {
		return
	}

	page, pageSize, err := paging(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	result, err := h.router.GetSessionMessages(r.Context(), session.ID, page, pageSize)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "ok", result)
}

// POST /chat/sessions/{sessionID}/messages
func (h *ChatHandlers) SendSessionMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req models.SendSessionMessageRequest
	if !bind(w, r, &req) {
		return
	}

	msg, err := h.router.SendMessage(r.Context(), models.SendMessageInput{
		SenderID:  userID,
		SessionID: sessionID,
		Body:      req.Body,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, "message sent", msg)
}

// POST /chat/messages
func (h *ChatHandlers) SendDirectMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var req models.SendDirectMessageRequest
	if !bind(w, r, &req) {
		return
	}

	msg, err := h.router.SendMessage(r.Context(), models.SendMessageInput{
		SenderID:   userID,
		ReceiverID: req.ReceiverID,
		Body:       req.Body,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Created(w, "message sent", msg)
}

// GET /chat/messages/unread
func (h *ChatHandlers) ListUnread(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}

	messages, err := h.router.GetUnreadMessages(r.Context(), userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, "ok", nonNil(messages))
}

// POST /chat/messages/{messageID}/read
func (h *ChatHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return
	}
	messageID, err := pathID(r, "messageID")
	if err != nil {
		response.Error(w, r, err)
		return
	}

	changed, err := h.router.MarkMessageRead(r.Context(), messageID, userID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	message := "message marked as read"
	if !changed {
		message = "message already read, not found or not addressed to you"
	}
	response.OK(w, message, map[string]bool{"changed": changed})
}

func (h *ChatHandlers) visibleSession(w http.ResponseWriter, r *http.Request) (*models.ChatSession, bool) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}
	sessionID, err := pathID(r, "sessionID")
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}

	session, err := h.router.GetSession(r.Context(), sessionID)
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}
	if err := h.router.EnsureCanView(r.Context(), session, userID); err != nil {
		response.Error(w, r, err)
		return nil, false
	}
	return session, true
}

func paging(r *http.Request) (int, int, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
