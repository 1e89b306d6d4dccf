package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/catalog"
	"github.com/scoopcreamy/ninjapos/internal/commit"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/db"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/kitchen"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/pricing"
	"github.com/scoopcreamy/ninjapos/internal/punchcard"
	"github.com/scoopcreamy/ninjapos/internal/sequence"
	"github.com/scoopcreamy/ninjapos/internal/settings"
	"github.com/scoopcreamy/ninjapos/internal/testutil"
)

type stack struct {
	products  *catalog.PostgresRepository
	customers *customer.PostgresRepository
	punches   *punchcard.PostgresRepository
	orders    *order.PostgresRepository
	settings  *settings.PostgresRepository
	pipeline  *commit.Pipeline
	kitchen   *kitchen.Service
	changes   chan events.OrderChanged
}

func newStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	dsn, pool, _ := testutil.StartPostgres(t)
	_, conn := testutil.StartRabbitMQ(t)

	_, err := pool.Exec(ctx, `
		INSERT INTO categories (id, name) VALUES ('mains', 'Mains'), ('sides', 'Sides');
		INSERT INTO products (id, name, category, price) VALUES
			('burger', 'Burger', 'Mains', 15.90),
			('fries', 'Fries', 'Sides', 6.00),
			('steak', 'Steak', 'Mains', 47.17);
	`)
	require.NoError(t, err)

	sqlDB, err := db.OpenDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	publisher, err := events.NewPublisher(conn, sequence.NewRepository(sqlDB), events.PublisherOptions{Producer: "integration"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	s := &stack{
		products:  catalog.NewPostgresRepository(pool),
		customers: customer.NewPostgresRepository(pool),
		punches:   punchcard.NewPostgresRepository(pool),
		orders:    order.NewPostgresRepository(pool),
		settings:  settings.NewPostgresRepository(pool),
		changes:   make(chan events.OrderChanged, 16),
	}
	logger := zap.NewNop()
	s.pipeline = commit.NewPipeline(s.orders, s.customers, s.punches, s.products, publisher, logger)
	s.kitchen = kitchen.NewService(s.orders, s.products, publisher, time.Hour, logger)

	stop, err := events.StartOrderChangeConsumer(ctx, conn, "integration", func(_ context.Context, _ events.EventEnvelope, p events.OrderChanged) error {
		s.changes <- p
		return nil
	}, logger)
	require.NoError(t, err)
	t.Cleanup(stop)

	return s
}

func (s *stack) waitFor(t *testing.T, orderID string, change events.Change) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case p := <-s.changes:
			if p.OrderID == orderID && p.Change == change {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on %s", change, orderID)
		}
	}
}

func (s *stack) lines(t *testing.T, qty map[string]int) []cart.Line {
	t.Helper()
	c := cart.New()
	for id, n := range qty {
		p, err := s.products.Get(context.Background(), id)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			c.Add(p)
		}
	}
	return c.Lines()
}

func TestSettlement_CustomerCommit(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	st, err := s.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, settings.Defaults(), st)

	mei, err := s.customers.Create(ctx, "Mei", "012-345 6789")
	require.NoError(t, err)
	_, err = s.customers.ApplyVisit(ctx, mei.ID, customer.Visit{Earned: 20, At: time.Now()})
	require.NoError(t, err)

	lines := s.lines(t, map[string]int{"steak": 1})
	totals := pricing.Quote(lines, st, pricing.Redemption{Balance: 20, Requested: 10})

	r, err := s.pipeline.Commit(ctx, commit.Request{
		Lines:      lines,
		Settings:   st,
		Totals:     totals,
		CustomerID: mei.ID,
		Method:     order.MethodCard,
	})
	require.NoError(t, err)
	require.Empty(t, r.Warnings)
	require.Equal(t, 50, r.EarnedPoints)

	got, err := s.customers.GetByPhone(ctx, "0123456789")
	require.NoError(t, err)
	require.Equal(t, 60, got.LoyaltyPoints)
	require.Equal(t, 2, got.TotalVisits)

	card, err := s.punches.Get(ctx, mei.ID)
	require.NoError(t, err)
	require.Equal(t, 1, card.CurrentPunches)

	stored, err := s.orders.Get(ctx, r.Order.ID)
	require.NoError(t, err)
	require.Equal(t, order.PaymentCompleted, stored.PaymentState)
	require.Equal(t, order.KitchenNew, stored.KitchenState)
	require.InDelta(t, totals.Subtotal, stored.ItemsTotal(), 1e-9)

	s.waitFor(t, r.Order.ID, events.ChangeCommitted)

	board, err := s.kitchen.Board(ctx)
	require.NoError(t, err)
	require.Len(t, board.Tickets, 1)
	require.Equal(t, "Steak", board.Tickets[0].Items[0].Name)

	_, err = s.kitchen.Advance(ctx, r.Order.ID, order.KitchenReady)
	require.ErrorIs(t, err, kitchen.ErrIllegalTransition)
	_, err = s.kitchen.Advance(ctx, r.Order.ID, order.KitchenCooking)
	require.NoError(t, err)
	s.waitFor(t, r.Order.ID, events.ChangeKitchenAdvanced)
}

func TestSettlement_ParkRecallCommit(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	st, err := s.settings.Get(ctx)
	require.NoError(t, err)

	lines := s.lines(t, map[string]int{"burger": 2, "fries": 1})
	parked, err := s.pipeline.Park(ctx, commit.ParkRequest{
		Lines:       lines,
		Totals:      pricing.Quote(lines, st, pricing.Redemption{}),
		TableNumber: "7",
	})
	require.NoError(t, err)
	s.waitFor(t, parked.ID, events.ChangeParked)

	pending, err := s.pipeline.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	board, err := s.kitchen.Board(ctx)
	require.NoError(t, err)
	require.Empty(t, board.Tickets, "parked orders stay off the board")

	recalled, err := s.pipeline.Recall(ctx, parked.ID)
	require.NoError(t, err)
	require.Equal(t, "7", recalled.TableNumber)
	require.ElementsMatch(t, lines, recalled.Lines)

	resumed := append(recalled.Lines, s.lines(t, map[string]int{"steak": 1})...)
	r, err := s.pipeline.Commit(ctx, commit.Request{
		ResumeOrderID: parked.ID,
		Lines:         resumed,
		Settings:      st,
		Totals:        pricing.Quote(resumed, st, pricing.Redemption{}),
		Method:        order.MethodCash,
		Tendered:      200,
		TableNumber:   "7",
	})
	require.NoError(t, err)
	require.Equal(t, parked.ID, r.Order.ID)

	items, err := s.orders.Items(ctx, parked.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	err = s.pipeline.DeletePending(ctx, parked.ID, events.EventMeta{})
	require.ErrorIs(t, err, commit.ErrNotPending)
}

func TestSettlement_DeletePending(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	st, err := s.settings.Get(ctx)
	require.NoError(t, err)

	lines := s.lines(t, map[string]int{"fries": 1})
	parked, err := s.pipeline.Park(ctx, commit.ParkRequest{
		Lines:       lines,
		Totals:      pricing.Quote(lines, st, pricing.Redemption{}),
		TableNumber: "2",
	})
	require.NoError(t, err)

	require.NoError(t, s.pipeline.DeletePending(ctx, parked.ID, events.EventMeta{CorrelationID: "it-1"}))
	s.waitFor(t, parked.ID, events.ChangeDeleted)

	_, err = s.orders.Get(ctx, parked.ID)
	require.ErrorIs(t, err, order.ErrNotFound)
	items, err := s.orders.Items(ctx, parked.ID)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestSettlement_RedemptionClampsToStoredBalance(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	st, err := s.settings.Get(ctx)
	require.NoError(t, err)

	aina, err := s.customers.Create(ctx, "Aina", "019-888 1234")
	require.NoError(t, err)
	_, err = s.customers.ApplyVisit(ctx, aina.ID, customer.Visit{Earned: 20, At: time.Now()})
	require.NoError(t, err)

	lines := s.lines(t, map[string]int{"steak": 1})
	totals := pricing.Quote(lines, st, pricing.Redemption{Balance: 20, Requested: 20})
	require.Equal(t, 20, totals.PointsRedeemed)

	// Another terminal spends most of the balance after this checkout read it.
	spent, err := s.customers.ApplyVisit(ctx, aina.ID, customer.Visit{Redeemed: 15, At: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 5, spent.LoyaltyPoints)

	r, err := s.pipeline.Commit(ctx, commit.Request{
		Lines:      lines,
		Settings:   st,
		Totals:     totals,
		CustomerID: aina.ID,
		Method:     order.MethodCard,
	})
	require.NoError(t, err)
	require.Empty(t, r.Warnings)

	got, err := s.customers.GetByID(ctx, aina.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got.LoyaltyPoints, 0)
	require.Equal(t, r.EarnedPoints, got.LoyaltyPoints, "only the 5 remaining points were redeemed")
}
