package kitchen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type fakeOrders struct {
	orders       map[string]order.Order
	since        time.Time
	advanceCalls int
	advanceErr   error
}

func (f *fakeOrders) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) AdvanceKitchen(_ context.Context, id string, from, to order.KitchenState) error {
	f.advanceCalls++
	if f.advanceErr != nil {
		return f.advanceErr
	}
	o := f.orders[id]
	if o.KitchenState != from {
		return order.ErrConflict
	}
	o.KitchenState = to
	f.orders[id] = o
	return nil
}

func (f *fakeOrders) ListBoard(_ context.Context, since time.Time) ([]order.Order, error) {
	f.since = since
	return []order.Order{
		{ID: "o2", KitchenState: order.KitchenNew, TableNumber: "3", OrderDate: fixedNow.Add(-time.Minute),
			Items: []order.Item{{ProductID: "burger", Quantity: 2}, {ProductID: "gone", Quantity: 1}}},
		{ID: "o1", KitchenState: order.KitchenCompleted, OrderDate: fixedNow.Add(-20 * time.Minute),
			Items: []order.Item{{ProductID: "fries", Quantity: 1}}},
	}, nil
}

type fakeProducts struct{ calls int }

func (f *fakeProducts) GetMany(_ context.Context, ids []string) (map[string]cart.Product, error) {
	f.calls++
	all := map[string]cart.Product{
		"burger": {ID: "burger", Name: "Burger"},
		"fries":  {ID: "fries", Name: "Fries"},
	}
	out := map[string]cart.Product{}
	for _, id := range ids {
		if p, ok := all[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakePublisher struct {
	payloads []events.OrderChanged
}

func (f *fakePublisher) PublishOrderChanged(_ context.Context, _ events.EventMeta, p events.OrderChanged) error {
	f.payloads = append(f.payloads, p)
	return nil
}

func newTestService(orders *fakeOrders) (*Service, *fakePublisher) {
	pub := &fakePublisher{}
	svc := NewService(orders, &fakeProducts{}, pub, 0, zap.NewNop())
	svc.now = func() time.Time { return fixedNow }
	return svc, pub
}

func TestAdvance_WalksForward(t *testing.T) {
	orders := &fakeOrders{orders: map[string]order.Order{
		"o1": {ID: "o1", PaymentState: order.PaymentCompleted, KitchenState: order.KitchenNew},
	}}
	svc, pub := newTestService(orders)
	ctx := context.Background()

	for _, to := range []order.KitchenState{order.KitchenCooking, order.KitchenReady, order.KitchenCompleted} {
		o, err := svc.Advance(ctx, "o1", to)
		require.NoError(t, err)
		require.Equal(t, to, o.KitchenState)
	}
	require.Len(t, pub.payloads, 3)
	require.Equal(t, events.ChangeKitchenAdvanced, pub.payloads[2].Change)
	require.Equal(t, order.KitchenCompleted, pub.payloads[2].KitchenState)
}

func TestAdvance_RejectsIllegalTransitions(t *testing.T) {
	tests := map[string]struct {
		from order.KitchenState
		to   order.KitchenState
		want error
	}{
		"skip":            {from: order.KitchenNew, to: order.KitchenReady, want: ErrIllegalTransition},
		"backward":        {from: order.KitchenReady, to: order.KitchenCooking, want: ErrIllegalTransition},
		"ready to new":    {from: order.KitchenReady, to: order.KitchenNew, want: ErrIllegalTransition},
		"after completed": {from: order.KitchenCompleted, to: order.KitchenNew, want: ErrIllegalTransition},
		"same state":      {from: order.KitchenCooking, to: order.KitchenCooking, want: ErrIllegalTransition},
		"unreleased":      {from: order.KitchenUnreleased, to: order.KitchenNew, want: ErrNotReleased},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			orders := &fakeOrders{orders: map[string]order.Order{"o1": {ID: "o1", KitchenState: tc.from}}}
			svc, pub := newTestService(orders)

			_, err := svc.Advance(context.Background(), "o1", tc.to)
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, orders.advanceCalls)
			require.Empty(t, pub.payloads)
		})
	}
}

func TestAdvance_ConflictAndMissing(t *testing.T) {
	orders := &fakeOrders{
		orders:     map[string]order.Order{"o1": {ID: "o1", KitchenState: order.KitchenNew}},
		advanceErr: order.ErrConflict,
	}
	svc, pub := newTestService(orders)

	_, err := svc.Advance(context.Background(), "o1", order.KitchenCooking)
	require.ErrorIs(t, err, order.ErrConflict)
	require.Empty(t, pub.payloads)

	_, err = svc.Advance(context.Background(), "nope", order.KitchenCooking)
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestBoard(t *testing.T) {
	orders := &fakeOrders{}
	svc, _ := newTestService(orders)

	b, err := svc.Board(context.Background())
	require.NoError(t, err)

	require.Equal(t, fixedNow.Add(-time.Hour), orders.since)
	require.Equal(t, fixedNow, b.GeneratedAt)
	require.Len(t, b.Tickets, 2)

	first := b.Tickets[0]
	require.Equal(t, "o2", first.OrderID)
	require.NotNil(t, first.Next)
	require.Equal(t, order.KitchenCooking, *first.Next)
	require.Equal(t, []TicketItem{
		{ProductID: "burger", Name: "Burger", Quantity: 2},
		{ProductID: "gone", Name: "gone", Quantity: 1},
	}, first.Items)

	require.Nil(t, b.Tickets[1].Next, "completed tickets offer no action")
}

func TestBoard_OffersOnlyNextAction(t *testing.T) {
	for _, st := range []order.KitchenState{order.KitchenNew, order.KitchenCooking, order.KitchenReady} {
		tk := newTicket(order.Order{ID: "o", KitchenState: st}, nil)
		require.NotNil(t, tk.Next)
		require.True(t, order.CanAdvance(st, *tk.Next))
	}
}

type fakeBroadcaster struct {
	msgs []BoardMessage
	err  error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, msg BoardMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func TestWatcher_RefetchesOnEveryChange(t *testing.T) {
	orders := &fakeOrders{}
	svc, _ := newTestService(orders)
	hub := &fakeBroadcaster{}
	w := NewWatcher(svc, hub, zap.NewNop())

	env := events.EventEnvelope{EventID: "e1"}
	require.NoError(t, w.Handle(context.Background(), env, events.OrderChanged{OrderID: "o2", Change: events.ChangeCommitted}))
	require.NoError(t, w.Handle(context.Background(), env, events.OrderChanged{OrderID: "o2", Change: events.ChangeKitchenAdvanced}))

	require.Len(t, hub.msgs, 2)
	require.True(t, hub.msgs[0].Alert)
	require.False(t, hub.msgs[1].Alert)
	require.Equal(t, "board", hub.msgs[1].Type)
	require.Len(t, hub.msgs[1].Tickets, 2)

	hub.err = errors.New("closed")
	require.Error(t, w.Handle(context.Background(), env, events.OrderChanged{OrderID: "o2"}))
}
