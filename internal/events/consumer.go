package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one decoded order change. Returning an error NACKs
// the delivery without requeue.
type HandlerFunc func(ctx context.Context, env EventEnvelope, payload OrderChanged) error

// StartOrderChangeConsumer subscribes an exclusive, auto-deleted queue to
// every order change so each running consumer sees the full feed. The
// returned cleanup closes the channel.
func StartOrderChangeConsumer(ctx context.Context, conn *amqp.Connection, consumerName string, handler HandlerFunc, logger *zap.Logger) (func(), error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	cleanup := func() { _ = ch.Close() }

	if err := declareEventsExchange(ch); err != nil {
		cleanup()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	if err := ch.QueueBind(q.Name, OrderChangesBinding, EventsExchange, false, nil); err != nil {
		cleanup()
		return nil, fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		consumerName,
		false, // autoAck
		true,  // exclusive
		false,
		false,
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("consume: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("stopping order change consumer", zap.String("queue", q.Name))
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("order change deliveries closed", zap.String("queue", q.Name))
					return
				}

				if err := handleDelivery(ctx, msg.Body, handler); err != nil {
					logger.Error("handle order change", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return cleanup, nil
}

func handleDelivery(ctx context.Context, body []byte, handler HandlerFunc) error {
	env, payload, err := Decode(body)
	if err != nil {
		return err
	}
	return handler(ctx, env, payload)
}

// Decode parses and validates an order change envelope.
func Decode(body []byte) (EventEnvelope, OrderChanged, error) {
	env, err := parseEnvelope(body)
	if err != nil {
		return EventEnvelope{}, OrderChanged{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(1); err != nil {
		return EventEnvelope{}, OrderChanged{}, err
	}

	var payload OrderChanged
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return EventEnvelope{}, OrderChanged{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.OrderID == "" {
		return EventEnvelope{}, OrderChanged{}, fmt.Errorf("missing orderId")
	}
	return env, payload, nil
}
