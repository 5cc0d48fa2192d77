package websocket

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
)

// handle runs one inbound frame. Failures are reported to this client only,
// as a ChatError.
func (c *Client) handle(ctx context.Context, f *models.Frame) {
	ctx, span := otel.Tracer("hotpot-chat/websocket").Start(ctx, "ws."+f.Event)
	span.SetAttributes(attribute.Int("user.id", c.user.ID), attribute.String("conn.id", c.id))
	defer span.End()

	var err error

	switch f.Event {
	case models.EventRegisterConnection:
		err = c.onRegister(f)
	case models.EventSendMessage:
		err = c.onSendMessage(ctx, f)
	case models.EventInitiateChat:
		err = c.onInitiateChat(ctx, f)
	case models.EventAcceptChat:
		err = c.onAcceptChat(ctx, f)
	case models.EventEndChat:
		err = c.onEndChat(ctx, f)
	case models.EventMarkAsRead:
		err = c.onMarkAsRead(ctx, f)
	default:
		err = apperrors.Validation(fmt.Sprintf("unknown event %q", f.Event))
	}

	if err == nil {
		return
	}

	appErr := apperrors.FromError(err)
	span.SetStatus(codes.Error, appErr.Message)
	if apperrors.IsUnexpected(appErr) {
		c.log.Error().Err(appErr.Internal).Str("event", f.Event).Msg("realtime operation failed")
		c.sendError(apperrors.ErrUnexpected.Message)
		return
	}
	c.log.Debug().Str("event", f.Event).Str("reason", appErr.Message).Msg("realtime operation rejected")
	c.sendError(appErr.Message)
}

// RegisterConnection(userId, roleTag)
func (c *Client) onRegister(f *models.Frame) error {
	var userID int
	var roleTag string
	if err := bindArgs(f, &userID, &roleTag); err != nil {
		return err
	}
	if err := c.checkIdentity(userID); err != nil {
		return err
	}
	if !roleMatches(roleTag, c.user.Role) {
		return apperrors.Validation("role does not match this account")
	}

	c.hub.RegisterConnection(c)
	c.sendEvent(models.NewEvent(models.EventConnectionRegistered, userID))
	return nil
}

// SendMessage(senderId, receiverId, body)
func (c *Client) onSendMessage(ctx context.Context, f *models.Frame) error {
	var senderID, receiverID int
	var body string
	if err := bindArgs(f, &senderID, &receiverID, &body); err != nil {
		return err
	}
	if err := c.checkIdentity(senderID); err != nil {
		return err
	}

	_, err := c.chat.SendMessage(ctx, models.SendMessageInput{SenderID: senderID, ReceiverID: receiverID, Body: body})
	return err
}

// InitiateChat(customerId, topic)
func (c *Client) onInitiateChat(ctx context.Context, f *models.Frame) error {
	var customerID int
	var topic string
	if err := bindArgs(f, &customerID, &topic); err != nil {
		return err
	}
	if err := c.checkIdentity(customerID); err != nil {
		return err
	}

	_, err := c.chat.CreateSession(ctx, customerID, topic)
	return err
}

// AcceptChat(managerId, sessionId)
func (c *Client) onAcceptChat(ctx context.Context, f *models.Frame) error {
	var managerID, sessionID int
	if err := bindArgs(f, &managerID, &sessionID); err != nil {
		return err
	}
	if err := c.checkIdentity(managerID); err != nil {
		return err
	}

	_, err := c.chat.JoinSession(ctx, sessionID, managerID)
	return err
}

// EndChat(sessionId, userId)
func (c *Client) onEndChat(ctx context.Context, f *models.Frame) error {
	var sessionID, userID int
	if err := bindArgs(f, &sessionID, &userID); err != nil {
		return err
	}
	if err := c.checkIdentity(userID); err != nil {
		return err
	}

	_, err := c.chat.EndSession(ctx, sessionID, userID)
	return err
}

// MarkAsRead(messageId, userId)
func (c *Client) onMarkAsRead(ctx context.Context, f *models.Frame) error {
	var messageID, userID int
	if err := bindArgs(f, &messageID, &userID); err != nil {
		return err
	}
	if err := c.checkIdentity(userID); err != nil {
		return err
	}

	_, err := c.chat.MarkMessageRead(ctx, messageID, userID)
	return err
}

func (c *Client) checkIdentity(userID int) error {
	if userID != c.user.ID {
		return apperrors.Unauthorized("user id does not match this connection")
	}
	return nil
}

func bindArgs(f *models.Frame, dst ...any) error {
	if err := f.Bind(dst...); err != nil {
		return apperrors.Validation(err.Error())
	}
	return nil
}

// roleMatches accepts either the role ("manager") or its group ("Managers").
func roleMatches(tag string, role models.Role) bool {
	tag = strings.TrimSpace(tag)
	return strings.EqualFold(tag, string(role)) || strings.EqualFold(tag, role.Group())
}
