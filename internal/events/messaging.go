package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "ninjapos.events"

	OrderCommittedRoutingKey       = "order.committed.v1"
	OrderParkedRoutingKey          = "order.parked.v1"
	OrderDeletedRoutingKey         = "order.deleted.v1"
	OrderKitchenAdvancedRoutingKey = "order.kitchen_advanced.v1"

	// OrderChangesBinding matches every order change routing key.
	OrderChangesBinding = "order.#"
)

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}
