// Package events mirrors realtime chat events to a message broker so that
// off-box consumers (mobile push, email digests, analytics) can react to them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const producerName = "hotpot-chat"

type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type Meta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Producer   string    `json:"producer"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope stamps data with a fresh event id and the current time.
func NewEnvelope(eventType string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       eventType,
			Producer:   producerName,
			OccurredAt: time.Now().UTC(),
		},
		Data: data,
	}
}

// RoutingKey is the broker key used for a realtime event name.
func RoutingKey(eventName string) string {
	return "chat." + eventName
}

type noopPublisher struct{}

// NewNoop returns a Publisher that discards everything.
func NewNoop() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, string, Envelope) error { return nil }
func (noopPublisher) Close() error                                   { return nil }
