package database

import (
	"context"
	stdErrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotpot-chat/internal/config"
	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
)

func seedUser(t *testing.T, db *MemoryDB, name string, role models.Role) *models.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), &models.User{
		Username: name,
		Email:    name + "@hotpot.test",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := NewMemoryDB()
	seedUser(t, db, "lin", models.RoleCustomer)

	_, err := db.CreateUser(context.Background(), &models.User{Username: "lin2", Email: "LIN@hotpot.test"})
	assert.True(t, stdErrors.Is(err, apperrors.ErrConflict))
}

func TestCreateSessionUnknownCustomer(t *testing.T) {
	db := NewMemoryDB()
	_, err := db.CreateSession(context.Background(), 99, "broken burner")
	assert.True(t, stdErrors.Is(err, apperrors.ErrNotFound))
}

func TestAssignmentSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	customer := seedUser(t, db, "customer", models.RoleCustomer)
	session, err := db.CreateSession(ctx, customer.ID, "billing question")
	require.NoError(t, err)

	const contenders = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []int
		conflicts int
	)
	for i := 1; i <= contenders; i++ {
		wg.Add(1)
		go func(managerID int) {
			defer wg.Done()
			_, err := db.UpdateSessionAssignment(ctx, session.ID, managerID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, managerID)
				return
			}
			if stdErrors.Is(err, apperrors.ErrConflict) {
				conflicts++
			}
		}(100 + i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, conflicts)

	final, err := db.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionAssigned, final.Status)
	require.NotNil(t, final.ManagerID)
	assert.Equal(t, winners[0], *final.ManagerID)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	customer := seedUser(t, db, "customer", models.RoleCustomer)
	session, err := db.CreateSession(ctx, customer.ID, "delivery time")
	require.NoError(t, err)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ended, changed, err := db.EndSession(ctx, session.ID, first)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.SessionEnded, ended.Status)

	again, changed, err := db.EndSession(ctx, session.ID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *again.EndedAt)

	_, err = db.UpdateSessionAssignment(ctx, session.ID, 7)
	assert.True(t, stdErrors.Is(err, apperrors.ErrConflict))

	_, err = db.InsertMessage(ctx, &models.ChatMessage{SessionID: session.ID, SenderID: customer.ID, Body: "hello?"})
	assert.True(t, stdErrors.Is(err, apperrors.ErrConflict))
}

func TestMarkMessageReadOnce(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	customer := seedUser(t, db, "customer", models.RoleCustomer)
	session, err := db.CreateSession(ctx, customer.ID, "spare ladles")
	require.NoError(t, err)

	receiver := 5
	msg, err := db.InsertMessage(ctx, &models.ChatMessage{SessionID: session.ID, SenderID: customer.ID, ReceiverID: &receiver, Body: "hi"})
	require.NoError(t, err)

	unread, err := db.QueryUnread(ctx, receiver)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	readAt := time.Now().UTC()

	// only the receiver can mark it
	_, changed, err := db.MarkMessageRead(ctx, msg.ID, customer.ID, readAt)
	require.NoError(t, err)
	assert.False(t, changed)

	read, changed, err := db.MarkMessageRead(ctx, msg.ID, receiver, readAt)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, read.IsRead)
	assert.Equal(t, readAt, *read.ReadAt)

	_, changed, err = db.MarkMessageRead(ctx, msg.ID, receiver, readAt.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	_, changed, err = db.MarkMessageRead(ctx, 404, receiver, readAt)
	require.NoError(t, err)
	assert.False(t, changed)

	unread, err = db.QueryUnread(ctx, receiver)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestQueryMessagesKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	customer := seedUser(t, db, "customer", models.RoleCustomer)
	session, err := db.CreateSession(ctx, customer.ID, "menu")
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three", "four", "five"} {
		_, err := db.InsertMessage(ctx, &models.ChatMessage{SessionID: session.ID, SenderID: customer.ID, Body: body})
		require.NoError(t, err)
	}

	page, total, err := db.QueryMessages(ctx, session.ID, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "three", page[0].Body)
	assert.Equal(t, "four", page[1].Body)

	page, _, err = db.QueryMessages(ctx, session.ID, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestQuerySessionsFilters(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryDB()
	alice := seedUser(t, db, "alice", models.RoleCustomer)
	bob := seedUser(t, db, "bob", models.RoleCustomer)
	mgr := seedUser(t, db, "mgr", models.RoleManager)

	s1, _ := db.CreateSession(ctx, alice.ID, "one")
	s2, _ := db.CreateSession(ctx, alice.ID, "two")
	_, _ = db.CreateSession(ctx, bob.ID, "three")
	_, err := db.UpdateSessionAssignment(ctx, s2.ID, mgr.ID)
	require.NoError(t, err)
	_, _, err = db.EndSession(ctx, s1.ID, time.Now())
	require.NoError(t, err)

	all, err := db.QuerySessions(ctx, models.SessionFilter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := db.QuerySessions(ctx, models.SessionFilter{UserID: alice.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, s2.ID, active[0].ID)

	managed, err := db.QuerySessions(ctx, models.SessionFilter{UserID: mgr.ID})
	require.NoError(t, err)
	assert.Len(t, managed, 1)

	pending, err := db.QuerySessions(ctx, models.SessionFilter{Status: models.SessionUnassigned, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	shared, err := db.LatestSharedSession(ctx, mgr.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, shared.ID)

	_, err = db.LatestSharedSession(ctx, mgr.ID, bob.ID)
	assert.True(t, stdErrors.Is(err, apperrors.ErrNotFound))
}

func TestOpenSelectsDriver(t *testing.T) {
	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDB{}, db)
	assert.NoError(t, db.Ping(context.Background()))

	_, err = Open(context.Background(), config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}
