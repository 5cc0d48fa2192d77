package models

import "time"

type SessionStatus string

const (
	SessionUnassigned SessionStatus = "unassigned"
	SessionAssigned   SessionStatus = "assigned"
	SessionEnded      SessionStatus = "ended"
)

type ChatSession struct {
	ID         int           `json:"id"`
	CustomerID int           `json:"customer_id"`
	ManagerID  *int          `json:"manager_id"`
	Topic      string        `json:"topic"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
}

func (s *ChatSession) IsActive() bool {
	return s.Status != SessionEnded
}

// HasParticipant reports whether userID is the customer or the assigned manager.
func (s *ChatSession) HasParticipant(userID int) bool {
	if s.CustomerID == userID {
		return true
	}
	return s.ManagerID != nil && *s.ManagerID == userID
}

// Counterpart returns the other party of the session, or nil while no manager is assigned.
func (s *ChatSession) Counterpart(userID int) *int {
	if s.CustomerID == userID {
		return s.ManagerID
	}
	customer := s.CustomerID
	return &customer
}

type ChatMessage struct {
	ID         int        `json:"id"`
	SessionID  int        `json:"session_id"`
	SenderID   int        `json:"sender_id"`
	ReceiverID *int       `json:"receiver_id"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	UserID     int
	ActiveOnly bool
	Status     SessionStatus
	Page       int
	PageSize   int
}

type CreateSessionRequest struct {
	Topic string `json:"topic" validate:"required,max=200"`
}

type SendSessionMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

type SendDirectMessageRequest struct {
	ReceiverID int    `json:"receiver_id" validate:"required,gt=0"`
	Body       string `json:"body" validate:"required,max=4000"`
}

// SendMessageInput addresses a message either by session or by receiver.
type SendMessageInput struct {
	SenderID   int
	SessionID  int
	ReceiverID int
	Body       string
}

type MessagePage struct {
	Items    []*ChatMessage `json:"items"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
}
