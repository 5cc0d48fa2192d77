package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hotpot-chat/internal/models"
	"hotpot-chat/internal/presence"
	apperrors "hotpot-chat/pkg/errors"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) CreateSession(ctx context.Context, customerID int, topic string) (*models.ChatSession, error) {
	args := m.Called(ctx, customerID, topic)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *mockChat) JoinSession(ctx context.Context, sessionID, managerID int) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID, managerID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *mockChat) SendMessage(ctx context.Context, in models.SendMessageInput) (*models.ChatMessage, error) {
	args := m.Called(ctx, in)
	msg, _ := args.Get(0).(*models.ChatMessage)
	return msg, args.Error(1)
}

func (m *mockChat) EndSession(ctx context.Context, sessionID, actorID int) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID, actorID)
	s, _ := args.Get(0).(*models.ChatSession)
	return s, args.Error(1)
}

func (m *mockChat) MarkMessageRead(ctx context.Context, messageID, readerID int) (bool, error) {
	args := m.Called(ctx, messageID, readerID)
	return args.Bool(0), args.Error(1)
}

type hubFixture struct {
	hub      *Hub
	registry *presence.Registry
	groups   *presence.Groups
	chat     *mockChat
}

func newHubFixture() *hubFixture {
	registry := presence.NewRegistry()
	groups := presence.NewGroups()
	return &hubFixture{
		hub:      NewHub(registry, groups),
		registry: registry,
		groups:   groups,
		chat:     &mockChat{},
	}
}

func (f *hubFixture) connect(id int, role models.Role) *Client {
	c := NewClient(f.hub, nil, &models.User{ID: id, Username: "user", Role: role}, f.chat)
	f.hub.Attach(c)
	return c
}

func frame(t *testing.T, event string, args ...any) *models.Frame {
	t.Helper()
	data, err := json.Marshal(models.NewEvent(event, args...))
	require.NoError(t, err)
	var f models.Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return &f
}

// drain returns the frames queued for c without blocking.
func drain(t *testing.T, c *Client) []models.Frame {
	t.Helper()
	var out []models.Frame
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var f models.Frame
			require.NoError(t, json.Unmarshal(data, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func errorText(t *testing.T, f models.Frame) string {
	t.Helper()
	require.Equal(t, models.EventChatError, f.Event)
	var msg string
	require.NoError(t, f.Bind(&msg))
	return msg
}

func TestRegisterConnection(t *testing.T) {
	f := newHubFixture()
	c := f.connect(7, models.RoleManager)

	c.handle(context.Background(), frame(t, models.EventRegisterConnection, 7, "Managers"))

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, models.EventConnectionRegistered, frames[0].Event)

	conn, ok := f.registry.TryResolve(7)
	require.True(t, ok)
	assert.Equal(t, c.ID(), conn)
	assert.Equal(t, []string{c.ID()}, f.groups.Members(models.GroupManagers))
}

func TestRegisterConnectionRejectsMismatches(t *testing.T) {
	f := newHubFixture()
	c := f.connect(42, models.RoleCustomer)

	c.handle(context.Background(), frame(t, models.EventRegisterConnection, 42, "manager"))
	c.handle(context.Background(), frame(t, models.EventRegisterConnection, 43, "customer"))
	c.handle(context.Background(), frame(t, models.EventRegisterConnection, 42))

	frames := drain(t, c)
	require.Len(t, frames, 3)
	assert.Equal(t, "role does not match this account", errorText(t, frames[0]))
	assert.Equal(t, "user id does not match this connection", errorText(t, frames[1]))
	assert.Contains(t, errorText(t, frames[2]), "expects 2 arguments")

	_, ok := f.registry.TryResolve(42)
	assert.False(t, ok)
}

func TestDispatchToChatService(t *testing.T) {
	f := newHubFixture()
	customer := f.connect(42, models.RoleCustomer)
	manager := f.connect(7, models.RoleManager)
	ctx := context.Background()

	f.chat.On("CreateSession", mock.Anything, 42, "billing question").Return(&models.ChatSession{ID: 1}, nil).Once()
	f.chat.On("JoinSession", mock.Anything, 1, 7).Return(&models.ChatSession{ID: 1}, nil).Once()
	f.chat.On("SendMessage", mock.Anything, models.SendMessageInput{SenderID: 7, ReceiverID: 42, Body: "how can I help?"}).
		Return(&models.ChatMessage{ID: 3}, nil).Once()
	f.chat.On("MarkMessageRead", mock.Anything, 3, 42).Return(true, nil).Once()
	f.chat.On("EndSession", mock.Anything, 1, 42).Return(&models.ChatSession{ID: 1}, nil).Once()

	customer.handle(ctx, frame(t, models.EventInitiateChat, 42, "billing question"))
	manager.handle(ctx, frame(t, models.EventAcceptChat, 7, 1))
	manager.handle(ctx, frame(t, models.EventSendMessage, 7, 42, "how can I help?"))
	customer.handle(ctx, frame(t, models.EventMarkAsRead, 3, 42))
	customer.handle(ctx, frame(t, models.EventEndChat, 1, 42))

	f.chat.AssertExpectations(t)
	assert.Empty(t, drain(t, customer))
	assert.Empty(t, drain(t, manager))
}

func TestDispatchReportsErrors(t *testing.T) {
	f := newHubFixture()
	c := f.connect(7, models.RoleManager)
	ctx := context.Background()

	f.chat.On("JoinSession", mock.Anything, 1, 7).Return(nil, apperrors.Conflict("chat session already assigned to another manager")).Once()
	f.chat.On("JoinSession", mock.Anything, 2, 7).Return(nil, errors.New("connection reset by peer")).Once()

	c.handle(ctx, frame(t, models.EventAcceptChat, 7, 1))
	c.handle(ctx, frame(t, models.EventAcceptChat, 7, 2))
	c.handle(ctx, frame(t, "OrderHotpot", 1))
	c.handle(ctx, frame(t, models.EventAcceptChat, "seven", 1))

	frames := drain(t, c)
	require.Len(t, frames, 4)
	assert.Equal(t, "chat session already assigned to another manager", errorText(t, frames[0]))
	assert.Equal(t, apperrors.ErrUnexpected.Message, errorText(t, frames[1]))
	assert.Equal(t, `unknown event "OrderHotpot"`, errorText(t, frames[2]))
	assert.Contains(t, errorText(t, frames[3]), "AcceptChat argument 0")
	f.chat.AssertExpectations(t)
}

func TestBroadcastToGroupExcept(t *testing.T) {
	f := newHubFixture()
	m1 := f.connect(7, models.RoleManager)
	m2 := f.connect(8, models.RoleManager)
	cust := f.connect(42, models.RoleCustomer)
	f.hub.RegisterConnection(m1)
	f.hub.RegisterConnection(m2)
	f.hub.RegisterConnection(cust)

	n := f.hub.BroadcastToGroupExcept(models.GroupManagers, m1.ID(), models.NewEvent(models.EventChatTaken, 1, 7))
	assert.Equal(t, 1, n)
	assert.Empty(t, drain(t, m1))
	assert.Len(t, drain(t, m2), 1)
	assert.Empty(t, drain(t, cust))

	n = f.hub.BroadcastToGroup(models.GroupManagers, models.NewEvent(models.EventNewChatRequest, 2))
	assert.Equal(t, 2, n)

	assert.True(t, f.hub.SendToConnection(cust.ID(), models.NewEvent(models.EventChatEnded, 1)))
	assert.False(t, f.hub.SendToConnection("gone", models.NewEvent(models.EventChatEnded, 1)))
}

func TestDetachBroadcastsDisconnect(t *testing.T) {
	f := newHubFixture()
	manager := f.connect(7, models.RoleManager)
	first := f.connect(42, models.RoleCustomer)
	f.hub.RegisterConnection(manager)
	f.hub.RegisterConnection(first)

	// a newer connection replaces the first one
	second := f.connect(42, models.RoleCustomer)
	f.hub.RegisterConnection(second)
	assert.Equal(t, []string{second.ID()}, f.groups.Members(models.GroupCustomers))

	f.hub.Detach(first)
	assert.Empty(t, drain(t, manager))

	f.hub.Detach(second)
	frames := drain(t, manager)
	require.Len(t, frames, 1)
	assert.Equal(t, models.EventUserDisconnected, frames[0].Event)

	_, ok := f.registry.TryResolve(42)
	assert.False(t, ok)
	assert.Equal(t, 1, f.hub.Online())

	// detaching twice is harmless
	f.hub.Detach(second)
	assert.False(t, f.hub.SendToConnection(second.ID(), models.NewEvent(models.EventChatEnded, 1)))
}

func TestSlowClientIsDropped(t *testing.T) {
	f := newHubFixture()
	c := f.connect(42, models.RoleCustomer)

	for i := 0; i < sendBuffer; i++ {
		require.True(t, f.hub.SendToConnection(c.ID(), models.NewEvent(models.EventMessageSent, i)))
	}
	assert.False(t, f.hub.SendToConnection(c.ID(), models.NewEvent(models.EventMessageSent, sendBuffer)))
}
