package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hotpot-chat/internal/database"
	"hotpot-chat/internal/models"
	"hotpot-chat/internal/notify"
	"hotpot-chat/internal/presence"
	"hotpot-chat/internal/ratelimit"
	apperrors "hotpot-chat/pkg/errors"
	"hotpot-chat/pkg/logger"
	"hotpot-chat/pkg/metrics"
)

const (
	maxTopicLength = 200
	maxPageSize    = 100
)

// ChatRouter owns the chat session lifecycle (unassigned, assigned, ended) and
// message delivery. Every state change is persisted before any push is queued.
type ChatRouter struct {
	store    database.ChatStore
	users    database.UserRepository
	presence presence.Resolver
	notifier notify.Notifier
	limiter  ratelimit.Limiter
	now      func() time.Time
	log      zerolog.Logger
}

func NewChatRouter(
	store database.ChatStore,
	users database.UserRepository,
	resolver presence.Resolver,
	notifier notify.Notifier,
	limiter ratelimit.Limiter,
) *ChatRouter {
	if limiter == nil {
		limiter = ratelimit.NewNoop()
	}
	return &ChatRouter{
		store:    store,
		users:    users,
		presence: resolver,
		notifier: notifier,
		limiter:  limiter,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.WithModule("chat"),
	}
}

// CreateSession opens an unassigned session for customerID and announces it to managers.
func (r *ChatRouter) CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error) {
	topic = strings.TrimSpace(topic)
	if customerID <= 0 {
		return nil, apperrors.Validation("customer id is required")
	}
	if topic == "" {
		return nil, apperrors.Validation("topic is required")
	}
	if len(topic) > maxTopicLength {
		return nil, apperrors.Validation("topic is too long")
	}

	customer, err := r.users.GetUserByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer.Role != models.RoleCustomer {
		return nil, apperrors.Validation("only customers can open chat sessions")
	}

	session, err := r.store.CreateSession(ctx, customer.ID, topic)
	if err != nil {
		return nil, err
	}
	metrics.SessionsCreated.Inc()

	r.log.Info().Int("session_id", session.ID).Int("customer_id", customer.ID).Msg("chat session created")

	r.notifier.Notify(notify.ToGroup(models.GroupManagers), models.NewEvent(models.EventNewChatRequest,
		session.ID, customer.ID, customer.Username, session.Topic, session.CreatedAt))
	r.notifier.Notify(notify.ToUser(customer.ID), models.NewEvent(models.EventChatInitiated,
		session.ID, session.Topic))

	return session, nil
}

// JoinSession assigns managerID to an unassigned session. Concurrent joins
// resolve to one winner; the rest get a conflict error.
func (r *ChatRouter) JoinSession(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error) {
	if sessionID <= 0 || managerID <= 0 {
		return nil, apperrors.Validation("session id and manager id are required")
	}

	manager, err := r.users.GetUserByID(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if manager.Role != models.RoleManager && manager.Role != models.RoleAdmin {
		return nil, apperrors.Validation("only managers can accept chat sessions")
	}

	// a session always has two distinct parties
	current, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.CustomerID == manager.ID {
		return nil, apperrors.Validation("cannot accept your own chat session")
	}

	session, err := r.store.UpdateSessionAssignment(ctx, sessionID, manager.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			metrics.JoinConflicts.Inc()
		}
		return nil, err
	}
	metrics.SessionTransitions.WithLabelValues(string(models.SessionAssigned)).Inc()

	r.log.Info().Int("session_id", session.ID).Int("manager_id", manager.ID).Msg("chat session assigned")

	r.notifier.Notify(notify.ToUser(session.CustomerID), models.NewEvent(models.EventChatAccepted,
		session.ID, manager.ID, manager.Username))

	callerConn, _ := r.presence.TryResolve(manager.ID)
	r.notifier.Notify(notify.ToGroupExcept(models.GroupManagers, callerConn), models.NewEvent(models.EventChatTaken,
		session.ID, manager.ID))

	return session, nil
}

// SendMessage stores a message in the referenced session, or in the latest
// active session shared with ReceiverID, then pushes it to the counterpart
// and echoes a confirmation to the sender.
func (r *ChatRouter) SendMessage(ctx context.Context, in models.SendMessageInput) (*models.ChatMessage, error) {
	if in.SenderID <= 0 {
		return nil, apperrors.Validation("sender id is required")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, apperrors.Validation("message body is required")
	}

	allowed, err := r.limiter.Allow(ctx, in.SenderID)
	if err != nil {
		r.log.Warn().Err(err).Int("user_id", in.SenderID).Msg("rate limiter unavailable, allowing message")
	} else if !allowed {
		return nil, apperrors.RateLimited("too many messages, please slow down")
	}

	session, err := r.resolveSession(ctx, in)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, apperrors.Conflict("chat session has ended")
	}

	receiver := session.Counterpart(in.SenderID)
	msg, err := r.store.InsertMessage(ctx, &models.ChatMessage{
		SessionID:  session.ID,
		SenderID:   in.SenderID,
		ReceiverID: receiver,
		Body:       in.Body,
	})
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if receiver != nil {
		r.notifier.Notify(notify.ToUser(*receiver), models.NewEvent(models.EventReceiveMessage,
			msg.ID, msg.SenderID, *receiver, msg.Body, msg.CreatedAt))
	}
	r.notifier.Notify(notify.ToUser(msg.SenderID), models.NewEvent(models.EventMessageSent, msg.ID))

	return msg, nil
}

func (r *ChatRouter) resolveSession(ctx context.Context, in models.SendMessageInput) (*models.ChatSession, error) {
	switch {
	case in.SessionID > 0:
		session, err := r.store.GetSession(ctx, in.SessionID)
		if err != nil {
			return nil, err
		}
		if !session.HasParticipant(in.SenderID) {
			return nil, apperrors.Unauthorized("sender is not a participant of this chat session")
		}
		return session, nil
	case in.ReceiverID > 0:
		if in.ReceiverID == in.SenderID {
			return nil, apperrors.Validation("cannot send a message to yourself")
		}
		return r.store.LatestSharedSession(ctx, in.SenderID, in.ReceiverID)
	default:
		return nil, apperrors.Validation("either session id or receiver id is required")
	}
}

// EndSession ends a session on behalf of actorID. Ending an already ended
// session returns its current state and notifies nobody.
func (r *ChatRouter) EndSession(ctx context.Context, sessionID, actorID int) (*models.ChatSession, error) {
	if sessionID <= 0 {
		return nil, apperrors.Validation("session id is required")
	}

	session, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := r.authorizeEnd(ctx, session, actorID); err != nil {
		return nil, err
	}

	ended, changed, err := r.store.EndSession(ctx, sessionID, r.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return ended, nil
	}
	metrics.SessionTransitions.WithLabelValues(string(models.SessionEnded)).Inc()

	r.log.Info().Int("session_id", ended.ID).Int("actor_id", actorID).Msg("chat session ended")

	r.notifier.Notify(notify.ToUser(ended.CustomerID), models.NewEvent(models.EventChatEnded, ended.ID))
	if ended.ManagerID != nil {
		r.notifier.Notify(notify.ToUser(*ended.ManagerID), models.NewEvent(models.EventChatEnded, ended.ID))
	}

	return ended, nil
}

func (r *ChatRouter) authorizeEnd(ctx context.Context, session *models.ChatSession, actorID int) error {
	if session.HasParticipant(actorID) {
		return nil
	}
	if actorID > 0 {
		actor, err := r.users.GetUserByID(ctx, actorID)
		if err == nil && actor.Role == models.RoleAdmin {
			return nil
		}
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return apperrors.Unauthorized("only session participants or administrators can end a chat session")
}

// MarkMessageRead flips the read flag once on behalf of the message's receiver
// and tells the original sender. It reports false when the message is missing,
// already read or not addressed to readerID.
func (r *ChatRouter) MarkMessageRead(ctx context.Context, messageID, readerID int) (bool, error) {
	if messageID <= 0 {
		return false, apperrors.Validation("message id is required")
	}
	if readerID <= 0 {
		return false, apperrors.Validation("user id is required")
	}

	msg, changed, err := r.store.MarkMessageRead(ctx, messageID, readerID, r.now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	metrics.MessagesRead.Inc()

	r.notifier.Notify(notify.ToUser(msg.SenderID), models.NewEvent(models.EventMessageRead, msg.ID))
	return true, nil
}

func (r *ChatRouter) GetUnreadMessages(ctx context.Context, userID int) ([]*models.ChatMessage, error) {
	if userID <= 0 {
		return nil, apperrors.Validation("user id is required")
	}
	return r.store.QueryUnread(ctx, userID)
}

// GetSessionMessages returns one page of a session's history in stored order.
func (r *ChatRouter) GetSessionMessages(ctx context.Context, sessionID, page, pageSize int) (*models.MessagePage, error) {
	if err := validatePage(page, pageSize); err != nil {
		return nil, err
	}
	if _, err := r.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	items, total, err := r.store.QueryMessages(ctx, sessionID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.ChatMessage{}
	}
	return &models.MessagePage{Items: items, Page: page, PageSize: pageSize, Total: total}, nil
}

func (r *ChatRouter) GetUserSessions(ctx context.Context, userID int, activeOnly bool) ([]*models.ChatSession, error) {
	if userID <= 0 {
		return nil, apperrors.Validation("user id is required")
	}
	return r.store.QuerySessions(ctx, models.SessionFilter{UserID: userID, ActiveOnly: activeOnly})
}

func (r *ChatRouter) GetSession(ctx context.Context, sessionID int) (*models.ChatSession, error) {
	if sessionID <= 0 {
		return nil, apperrors.Validation("session id is required")
	}
	return r.store.GetSession(ctx, sessionID)
}

// GetPendingSessions lists the unassigned queue, newest first.
func (r *ChatRouter) GetPendingSessions(ctx context.Context, page, pageSize int) ([]*models.ChatSession, error) {
	if err := validatePage(page, pageSize); err != nil {
		return nil, err
	}
	return r.store.QuerySessions(ctx, models.SessionFilter{
		Status:   models.SessionUnassigned,
		Page:     page,
		PageSize: pageSize,
	})
}

// EnsureCanView allows session participants, managers and administrators.
func (r *ChatRouter) EnsureCanView(ctx context.Context, session *models.ChatSession, userID int) error {
	if session.HasParticipant(userID) {
		return nil
	}
	user, err := r.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("not allowed to view this chat session")
		}
		return err
	}
	if user.Role == models.RoleManager || user.Role == models.RoleAdmin {
		return nil
	}
	return apperrors.Unauthorized("not allowed to view this chat session")
}

func validatePage(page, pageSize int) error {
	if page < 1 {
		return apperrors.Validation("page must be at least 1")
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return apperrors.Validation("page size must be between 1 and 100")
	}
	return nil
}
