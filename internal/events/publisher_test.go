package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/scoopcreamy/ninjapos/internal/order"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent       []published
	publishErr error
	closed     bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.publishErr != nil {
		return c.publishErr
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeSequences struct {
	next map[string]int64
	err  error
}

func (s *fakeSequences) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.next == nil {
		s.next = map[string]int64{}
	}
	s.next[partitionKey]++
	return s.next[partitionKey], nil
}

func TestPublishOrderChanged(t *testing.T) {
	ch := &fakeChannel{}
	seq := &fakeSequences{}
	p := newPublisher(ch, seq, PublisherOptions{Producer: "pos-test"})
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	o := order.Order{
		ID:           "o1",
		PaymentState: order.PaymentCompleted,
		KitchenState: order.KitchenNew,
		TotalAmount:  23.214,
		Items:        []order.Item{{Quantity: 1}, {Quantity: 2}},
	}

	meta := EventMeta{CorrelationID: "corr-1"}
	require.NoError(t, p.PublishOrderChanged(context.Background(), meta, OrderChangedFrom(o, ChangeCommitted)))
	require.NoError(t, p.PublishOrderChanged(context.Background(), meta, OrderChangedFrom(o, ChangeKitchenAdvanced)))

	require.Len(t, ch.sent, 2)
	require.Equal(t, EventsExchange, ch.sent[0].exchange)
	require.Equal(t, OrderCommittedRoutingKey, ch.sent[0].key)
	require.Equal(t, OrderKitchenAdvancedRoutingKey, ch.sent[1].key)
	require.Equal(t, amqp.Persistent, ch.sent[0].msg.DeliveryMode)

	env, payload, err := Decode(ch.sent[1].msg.Body)
	require.NoError(t, err)
	require.Equal(t, EventTypeOrderKitchenAdvanced, env.EventName)
	require.Equal(t, "o1", env.PartitionKey)
	require.Equal(t, int64(2), env.Sequence)
	require.Equal(t, "corr-1", env.CorrelationID)
	require.Equal(t, "pos-test", env.Producer)
	require.Equal(t, now, env.OccurredAt)
	require.Equal(t, 3, payload.ItemCount)
	require.Equal(t, order.KitchenNew, payload.KitchenState)
}

func TestPublishOrderChanged_Errors(t *testing.T) {
	t.Run("unknown change", func(t *testing.T) {
		p := newPublisher(&fakeChannel{}, &fakeSequences{}, PublisherOptions{})
		err := p.PublishOrderChanged(context.Background(), EventMeta{}, OrderChanged{OrderID: "o1", Change: "exploded"})
		require.Error(t, err)
	})

	t.Run("sequence failure", func(t *testing.T) {
		ch := &fakeChannel{}
		p := newPublisher(ch, &fakeSequences{err: errors.New("db down")}, PublisherOptions{})
		err := p.PublishOrderChanged(context.Background(), EventMeta{}, OrderChanged{OrderID: "o1", Change: ChangeParked})
		require.Error(t, err)
		require.Empty(t, ch.sent)
	})

	t.Run("broker failure", func(t *testing.T) {
		ch := &fakeChannel{publishErr: errors.New("channel closed")}
		p := newPublisher(ch, &fakeSequences{}, PublisherOptions{})
		err := p.PublishOrderChanged(context.Background(), EventMeta{}, OrderChanged{OrderID: "o1", Change: ChangeDeleted})
		require.Error(t, err)
	})
}

func TestDecodeRejectsInvalidEnvelopes(t *testing.T) {
	valid := EventEnvelope{
		EventName:    EventTypeOrderParked,
		EventVersion: 1,
		EventID:      "e1",
		PartitionKey: "o1",
		Payload:      json.RawMessage(`{"orderId":"o1","change":"parked"}`),
	}

	tests := map[string]func(e *EventEnvelope){
		"unknown name":  func(e *EventEnvelope) { e.EventName = "StockReserved" },
		"wrong version": func(e *EventEnvelope) { e.EventVersion = 2 },
		"no partition":  func(e *EventEnvelope) { e.PartitionKey = "" },
		"no event id":   func(e *EventEnvelope) { e.EventID = "" },
		"no order id":   func(e *EventEnvelope) { e.Payload = json.RawMessage(`{"change":"parked"}`) },
	}

	body, err := json.Marshal(valid)
	require.NoError(t, err)
	_, _, err = Decode(body)
	require.NoError(t, err)

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			env := valid
			mutate(&env)
			body, err := json.Marshal(env)
			require.NoError(t, err)

			_, _, err = Decode(body)
			require.Error(t, err)
		})
	}

	_, _, err = Decode([]byte(`{not json`))
	require.Error(t, err)
}

func TestHandleDeliveryInvokesHandler(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, &fakeSequences{}, PublisherOptions{})
	require.NoError(t, p.PublishOrderChanged(context.Background(), EventMeta{}, OrderChanged{OrderID: "o7", Change: ChangeDeleted}))

	var got OrderChanged
	err := handleDelivery(context.Background(), ch.sent[0].msg.Body, func(ctx context.Context, env EventEnvelope, payload OrderChanged) error {
		got = payload
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "o7", got.OrderID)
	require.Equal(t, ChangeDeleted, got.Change)
}
