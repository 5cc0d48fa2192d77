package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBind(t *testing.T) {
	var f Frame
	require.NoError(t, json.Unmarshal([]byte(`{"event":"SendMessage","args":[7,42,"how can I help?"]}`), &f))

	var sender, receiver int
	var body string
	require.NoError(t, f.Bind(&sender, &receiver, &body))

	assert.Equal(t, EventSendMessage, f.Event)
	assert.Equal(t, 7, sender)
	assert.Equal(t, 42, receiver)
	assert.Equal(t, "how can I help?", body)
}

func TestFrameBindArity(t *testing.T) {
	f := Frame{Event: EventEndChat, Args: []json.RawMessage{json.RawMessage(`1`)}}

	var sessionID, userID int
	err := f.Bind(&sessionID, &userID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 arguments")
}

func TestFrameBindType(t *testing.T) {
	f := Frame{Event: EventMarkAsRead, Args: []json.RawMessage{json.RawMessage(`"x"`), json.RawMessage(`3`)}}

	var messageID, userID int
	assert.Error(t, f.Bind(&messageID, &userID))
}

func TestEventKeepsArgOrder(t *testing.T) {
	data, err := json.Marshal(NewEvent(EventChatAccepted, 5, 7, "mei"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ChatAccepted","args":[5,7,"mei"]}`, string(data))

	data, err = json.Marshal(NewEvent(EventChatError))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ChatError","args":[]}`, string(data))
}

func TestSessionParticipants(t *testing.T) {
	s := &ChatSession{CustomerID: 42, Status: SessionUnassigned}
	assert.True(t, s.HasParticipant(42))
	assert.False(t, s.HasParticipant(7))
	assert.Nil(t, s.Counterpart(42))

	manager := 7
	s.ManagerID = &manager
	s.Status = SessionAssigned
	assert.True(t, s.HasParticipant(7))
	assert.Equal(t, 7, *s.Counterpart(42))
	assert.Equal(t, 42, *s.Counterpart(7))
	assert.True(t, s.IsActive())
}

func TestRoleGroup(t *testing.T) {
	assert.Equal(t, GroupManagers, RoleManager.Group())
	assert.Equal(t, GroupAdministrators, RoleAdmin.Group())
	assert.Equal(t, GroupCustomers, RoleCustomer.Group())
	assert.False(t, Role("chef").Valid())
}
