package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/scoopcreamy/ninjapos/internal/sequence"
)

type EventMeta struct {
	CorrelationID string
	CausationID   string
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       channel
	seqRepo  sequence.Repository
	producer string
	timeout  time.Duration
	now      func() time.Time
}

type PublisherOptions struct {
	Producer string
	Timeout  time.Duration
}

func NewPublisher(conn *amqp.Connection, seqRepo sequence.Repository, opts PublisherOptions) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seqRepo, opts), nil
}

func newPublisher(ch channel, seqRepo sequence.Repository, opts PublisherOptions) *Publisher {
	producer := opts.Producer
	if producer == "" {
		producer = "pos-service"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{
		ch:       ch,
		seqRepo:  seqRepo,
		producer: producer,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishOrderChanged sends one enveloped change event partitioned by order id.
func (p *Publisher) PublishOrderChanged(ctx context.Context, meta EventMeta, payload OrderChanged) error {
	r, ok := routes[payload.Change]
	if !ok {
		return fmt.Errorf("unknown order change %q", payload.Change)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = p.now().UTC()
	}

	seq, err := p.seqRepo.NextSequence(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env, err := newOrderChangedEvent(meta, seq, p.producer, r.eventName, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", r.eventName, err)
	}

	return p.publishJSON(ctx, r.routingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func newOrderChangedEvent(meta EventMeta, seq int64, producer, eventName string, payload OrderChanged) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", eventName, err)
	}
	return EventEnvelope{
		EventName:     eventName,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  payload.OrderID,
		Sequence:      seq,
		OccurredAt:    payload.Timestamp,
		Schema:        orderChangedSchema,
		Payload:       raw,
	}, nil
}
