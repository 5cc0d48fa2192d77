package database

import (
	"context"
	"time"

	"hotpot-chat/internal/models"
)

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

// SessionStore persists chat sessions. Transitions are conditional so that
// concurrent callers observe a single winner.
type SessionStore interface {
	CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error)
	GetSession(ctx context.Context, id int) (*models.ChatSession, error)
	// UpdateSessionAssignment sets the manager only while the session is
	// unassigned. It returns a conflict error otherwise.
	UpdateSessionAssignment(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error)
	// EndSession marks the session ended. changed is false when it already was.
	EndSession(ctx context.Context, sessionID int, endedAt time.Time) (session *models.ChatSession, changed bool, err error)
	QuerySessions(ctx context.Context, filter models.SessionFilter) ([]*models.ChatSession, error)
	// LatestSharedSession returns the newest non-ended session where both users take part.
	LatestSharedSession(ctx context.Context, userA, userB int) (*models.ChatSession, error)
}

type MessageStore interface {
	// InsertMessage stores an unread message, failing with a conflict error
	// when the session has ended.
	InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	// MarkMessageRead flips the read flag once, only for the message's
	// receiver. changed is false when the message is missing, already read or
	// addressed to someone else.
	MarkMessageRead(ctx context.Context, messageID, receiverID int, readAt time.Time) (msg *models.ChatMessage, changed bool, err error)
	QueryMessages(ctx context.Context, sessionID, limit, offset int) ([]*models.ChatMessage, int, error)
	QueryUnread(ctx context.Context, receiverID int) ([]*models.ChatMessage, error)
}

// ChatStore is the persistence boundary consumed by the chat router.
type ChatStore interface {
	SessionStore
	MessageStore
}

type Database interface {
	UserRepository
	ChatStore
	Ping(ctx context.Context) error
	Close() error
}
