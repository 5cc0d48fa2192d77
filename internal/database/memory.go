package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
)

// MemoryDB is a process-local Database used by tests and the "memory"
// driver. A single mutex makes every conditional transition atomic.
type MemoryDB struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[int]*models.User
	sessions map[int]*models.ChatSession
	messages []*models.ChatMessage
	userSeq  int
	sessSeq  int
	msgSeq   int
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		now:      func() time.Time { return time.Now().UTC() },
		users:    make(map[int]*models.User),
		sessions: make(map[int]*models.ChatSession),
	}
}

func (db *MemoryDB) Ping(ctx context.Context) error { return ctx.Err() }
func (db *MemoryDB) Close() error                   { return nil }

func (db *MemoryDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (db *MemoryDB) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, apperrors.Conflict("email already registered")
		}
	}

	db.userSeq++
	user := *u
	user.ID = db.userSeq
	user.CreatedAt = db.now()
	db.users[user.ID] = &user

	cpy := user
	return &cpy, nil
}

func (db *MemoryDB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	u, ok := db.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	cpy := *u
	cpy.PasswordHash = ""
	return &cpy, nil
}

func (db *MemoryDB) CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[customerID]; !ok {
		return nil, apperrors.NotFound("customer not found")
	}

	db.sessSeq++
	s := &models.ChatSession{
		ID:         db.sessSeq,
		CustomerID: customerID,
		Topic:      topic,
		Status:     models.SessionUnassigned,
		CreatedAt:  db.now(),
	}
	db.sessions[s.ID] = s
	return copySession(s), nil
}

func (db *MemoryDB) GetSession(ctx context.Context, id int) (*models.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, apperrors.NotFound("chat session not found")
	}
	return copySession(s), nil
}

func (db *MemoryDB) UpdateSessionAssignment(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFound("chat session not found")
	}
	if s.Status != models.SessionUnassigned || s.ManagerID != nil {
		return nil, assignmentConflict(s)
	}

	id := managerID
	s.ManagerID = &id
	s.Status = models.SessionAssigned
	return copySession(s), nil
}

func (db *MemoryDB) EndSession(ctx context.Context, sessionID int, endedAt time.Time) (*models.ChatSession, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[sessionID]
	if !ok {
		return nil, false, apperrors.NotFound("chat session not found")
	}
	if s.Status == models.SessionEnded {
		return copySession(s), false, nil
	}

	at := endedAt
	s.Status = models.SessionEnded
	s.EndedAt = &at
	return copySession(s), true, nil
}

func (db *MemoryDB) QuerySessions(ctx context.Context, filter models.SessionFilter) ([]*models.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []*models.ChatSession
	for _, s := range db.sessions {
		if filter.UserID > 0 && !s.HasParticipant(filter.UserID) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.ActiveOnly && !s.IsActive() {
			continue
		}
		out = append(out, copySession(s))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.PageSize > 0 {
		out = paginate(out, filter.Page, filter.PageSize)
	}
	return out, nil
}

func (db *MemoryDB) LatestSharedSession(ctx context.Context, userA, userB int) (*models.ChatSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var latest *models.ChatSession
	for _, s := range db.sessions {
		if !s.IsActive() || s.ManagerID == nil {
			continue
		}
		shared := (s.CustomerID == userA && *s.ManagerID == userB) ||
			(s.CustomerID == userB && *s.ManagerID == userA)
		if shared && (latest == nil || s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil, apperrors.NotFound("no active chat session between these users")
	}
	return copySession(latest), nil
}

func (db *MemoryDB) InsertMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[msg.SessionID]
	if !ok {
		return nil, apperrors.NotFound("chat session not found")
	}
	if !s.IsActive() {
		return nil, apperrors.Conflict("chat session has ended")
	}

	db.msgSeq++
	stored := &models.ChatMessage{
		ID:         db.msgSeq,
		SessionID:  msg.SessionID,
		SenderID:   msg.SenderID,
		ReceiverID: copyInt(msg.ReceiverID),
		Body:       msg.Body,
		CreatedAt:  db.now(),
	}
	db.messages = append(db.messages, stored)
	return copyMessage(stored), nil
}

func (db *MemoryDB) MarkMessageRead(ctx context.Context, messageID, receiverID int, readAt time.Time) (*models.ChatMessage, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, m := range db.messages {
		if m.ID != messageID {
			continue
		}
		if m.IsRead || m.ReceiverID == nil || *m.ReceiverID != receiverID {
			return nil, false, nil
		}
		at := readAt
		m.IsRead = true
		m.ReadAt = &at
		return copyMessage(m), true, nil
	}
	return nil, false, nil
}

func (db *MemoryDB) QueryMessages(ctx context.Context, sessionID, limit, offset int) ([]*models.ChatMessage, int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var all []*models.ChatMessage
	for _, m := range db.messages {
		if m.SessionID == sessionID {
			all = append(all, copyMessage(m))
		}
	}

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (db *MemoryDB) QueryUnread(ctx context.Context, receiverID int) ([]*models.ChatMessage, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []*models.ChatMessage
	for _, m := range db.messages {
		if !m.IsRead && m.ReceiverID != nil && *m.ReceiverID == receiverID {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func paginate(in []*models.ChatSession, page, size int) []*models.ChatSession {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(in) {
		return nil
	}
	end := start + size
	if end > len(in) {
		end = len(in)
	}
	return in[start:end]
}

func copySession(s *models.ChatSession) *models.ChatSession {
	cpy := *s
	cpy.ManagerID = copyInt(s.ManagerID)
	if s.EndedAt != nil {
		t := *s.EndedAt
		cpy.EndedAt = &t
	}
	return &cpy
}

func copyMessage(m *models.ChatMessage) *models.ChatMessage {
	cpy := *m
	cpy.ReceiverID = copyInt(m.ReceiverID)
	if m.ReadAt != nil {
		t := *m.ReadAt
		cpy.ReadAt = &t
	}
	return &cpy
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
