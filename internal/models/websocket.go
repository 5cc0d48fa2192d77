package models

import (
	"encoding/json"
	"fmt"
)

// Inbound realtime events.
const (
	EventRegisterConnection = "RegisterConnection"
	EventSendMessage        = "SendMessage"
	EventInitiateChat       = "InitiateChat"
	EventAcceptChat         = "AcceptChat"
	EventEndChat            = "EndChat"
	EventMarkAsRead         = "MarkAsRead"
)

// Outbound realtime events.
const (
	EventConnectionRegistered = "ConnectionRegistered"
	EventReceiveMessage       = "ReceiveMessage"
	EventMessageSent          = "MessageSent"
	EventNewChatRequest       = "NewChatRequest"
	EventChatInitiated        = "ChatInitiated"
	EventChatAccepted         = "ChatAccepted"
	EventChatTaken            = "ChatTaken"
	EventChatEnded            = "ChatEnded"
	EventMessageRead          = "MessageRead"
	EventChatError            = "ChatError"
	EventUserDisconnected     = "UserDisconnected"
)

// Event is an outbound frame. Args are positional.
type Event struct {
	Name string `json:"event"`
	Args []any  `json:"args"`
}

func NewEvent(name string, args ...any) Event {
	if args == nil {
		args = []any{}
	}
	return Event{Name: name, Args: args}
}

// Frame is an inbound frame whose args are decoded lazily per event.
type Frame struct {
	Event string            `json:"event"`
	Args  []json.RawMessage `json:"args"`
}

// Bind decodes the positional args into dst, which must have the same length.
func (f *Frame) Bind(dst ...any) error {
	if len(f.Args) != len(dst) {
		return fmt.Errorf("%s expects %d arguments, got %d", f.Event, len(dst), len(f.Args))
	}
	for i, raw := range f.Args {
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("%s argument %d: %w", f.Event, i, err)
		}
	}
	return nil
}
