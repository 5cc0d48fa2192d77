package events

import (
	"fmt"

	"hotpot-chat/internal/config"
)

// New builds the publisher selected by cfg.Driver.
func New(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return NewNoop(), nil
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka)
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
