package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"

	"hotpot-chat/internal/config"
)

type rabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	exchange string
}

// NewRabbitMQPublisher declares a durable topic exchange and publishes to it.
func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (Publisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %q: %w", cfg.Exchange, err)
	}

	return &rabbitPublisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

func (r *rabbitPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal envelope: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.Meta.ID,
		Type:         env.Meta.Type,
		AppId:        env.Meta.Producer,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
}

func (r *rabbitPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch != nil {
		_ = r.ch.Close()
	}
	return r.conn.Close()
}
