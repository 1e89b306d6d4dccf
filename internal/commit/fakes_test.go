package commit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/punchcard"
)

type memOrders struct {
	mu      sync.Mutex
	seq     int
	orders  map[string]order.Order
	items   map[string][]order.Item
	itemErr error
	relErr  error
	delErr  error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[string]order.Order{}, items: map[string][]order.Item{}}
}

func (m *memOrders) Insert(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == "" {
		m.seq++
		o.ID = fmt.Sprintf("ord-%d", m.seq)
	}
	o.PaymentState = order.PaymentPending
	o.KitchenState = order.KitchenUnreleased
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) UpdatePending(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok || cur.PaymentState != order.PaymentPending {
		return order.ErrNotPending
	}
	o.PaymentState = order.PaymentPending
	o.KitchenState = order.KitchenUnreleased
	m.orders[o.ID] = *o
	return nil
}

func (m *memOrders) Release(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.relErr != nil {
		return m.relErr
	}
	o, ok := m.orders[id]
	if !ok || o.PaymentState != order.PaymentPending {
		return order.ErrNotPending
	}
	o.PaymentState = order.PaymentCompleted
	o.KitchenState = order.KitchenNew
	m.orders[id] = o
	return nil
}

func (m *memOrders) InsertItem(_ context.Context, it *order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.itemErr != nil {
		return m.itemErr
	}
	m.seq++
	it.ID = fmt.Sprintf("item-%d", m.seq)
	m.items[it.OrderID] = append(m.items[it.OrderID], *it)
	return nil
}

func (m *memOrders) DeleteItems(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memOrders) DeletePending(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	o, ok := m.orders[id]
	if !ok || o.PaymentState != order.PaymentPending {
		return order.ErrNotPending
	}
	delete(m.orders, id)
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	o.Items = m.sortedItems(id)
	return o, nil
}

func (m *memOrders) Items(_ context.Context, id string) ([]order.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedItems(id), nil
}

func (m *memOrders) ListPending(_ context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.PaymentState == order.PaymentPending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) AdvanceKitchen(context.Context, string, order.KitchenState, order.KitchenState) error {
	return errors.New("not used")
}

func (m *memOrders) ListBoard(context.Context, time.Time) ([]order.Order, error) {
	return nil, errors.New("not used")
}

func (m *memOrders) RecentItems(context.Context, int) ([]order.Item, error) {
	return nil, errors.New("not used")
}

// sortedItems orders by product id; inserts run concurrently.
func (m *memOrders) sortedItems(id string) []order.Item {
	items := append([]order.Item(nil), m.items[id]...)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

type fakeLoyalty struct {
	balances map[string]int
	visits   []customer.Visit
	err      error
}

func (f *fakeLoyalty) ApplyVisit(_ context.Context, id string, v customer.Visit) (customer.Customer, error) {
	if f.err != nil {
		return customer.Customer{}, f.err
	}
	f.visits = append(f.visits, v)
	bal := f.balances[id]
	redeemed := min(max(v.Redeemed, 0), bal)
	bal = bal - redeemed + max(v.Earned, 0)
	f.balances[id] = bal
	return customer.Customer{ID: id, LoyaltyPoints: bal, TotalVisits: len(f.visits)}, nil
}

type fakePunchCards struct {
	cards map[string]punchcard.Card
	calls int
	err   error
}

func (f *fakePunchCards) Apply(_ context.Context, id string, fn func(punchcard.Card) punchcard.Card) (punchcard.Card, error) {
	f.calls++
	if f.err != nil {
		return punchcard.Card{}, f.err
	}
	card, ok := f.cards[id]
	if !ok {
		card = punchcard.Card{CustomerID: id}
	}
	card = fn(card)
	f.cards[id] = card
	return card, nil
}

type fakeProducts struct {
	products map[string]cart.Product
}

func (f *fakeProducts) GetMany(_ context.Context, ids []string) (map[string]cart.Product, error) {
	out := make(map[string]cart.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads []events.OrderChanged
	err      error
}

func (f *fakePublisher) PublishOrderChanged(_ context.Context, _ events.EventMeta, p events.OrderChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, p)
	return f.err
}

func (f *fakePublisher) changes() []events.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Change, 0, len(f.payloads))
	for _, p := range f.payloads {
		out = append(out, p.Change)
	}
	return out
}
