// Package kitchen runs the order lifecycle on the kitchen side and keeps
// every connected board up to date.
package kitchen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
)

const DefaultRecentWindow = time.Hour

var (
	ErrIllegalTransition = errors.New("only the next kitchen state can be set")
	ErrNotReleased       = errors.New("order has not been released to the kitchen")
)

type Orders interface {
	Get(ctx context.Context, orderID string) (order.Order, error)
	AdvanceKitchen(ctx context.Context, orderID string, from, to order.KitchenState) error
	ListBoard(ctx context.Context, completedSince time.Time) ([]order.Order, error)
}

type Products interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]cart.Product, error)
}

type Publisher interface {
	PublishOrderChanged(ctx context.Context, meta events.EventMeta, payload events.OrderChanged) error
}

type TicketItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// Ticket is one order on the board. Next is the only action offered; it is
// nil once the order is completed.
type Ticket struct {
	OrderID     string              `json:"orderId"`
	TableNumber string              `json:"tableNumber,omitempty"`
	OrderType   order.OrderType     `json:"orderType"`
	State       order.KitchenState  `json:"state"`
	Next        *order.KitchenState `json:"next"`
	OrderDate   time.Time           `json:"orderDate"`
	Items       []TicketItem        `json:"items"`
}

type Board struct {
	Tickets     []Ticket  `json:"tickets"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type Service struct {
	orders    Orders
	products  Products
	publisher Publisher
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(orders Orders, products Products, publisher Publisher, window time.Duration, logger *zap.Logger) *Service {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	return &Service{
		orders:    orders,
		products:  products,
		publisher: publisher,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// Advance moves an order one step forward. The stored state must still be
// the one read here, otherwise ErrConflict is returned and nothing changes.
func (s *Service) Advance(ctx context.Context, orderID string, to order.KitchenState) (order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.KitchenState == order.KitchenUnreleased {
		return order.Order{}, ErrNotReleased
	}
	if !order.CanAdvance(o.KitchenState, to) {
		return order.Order{}, ErrIllegalTransition
	}

	if err := s.orders.AdvanceKitchen(ctx, orderID, o.KitchenState, to); err != nil {
		return order.Order{}, err
	}
	from := o.KitchenState
	o.KitchenState = to

	s.logger.Info("kitchen state advanced",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if s.publisher != nil {
		if err := s.publisher.PublishOrderChanged(ctx, events.MetaFromContext(ctx), events.OrderChangedFrom(o, events.ChangeKitchenAdvanced)); err != nil {
			s.logger.Warn("publish kitchen change", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return o, nil
}

// Board lists in-progress orders and recently completed ones, newest first.
func (s *Service) Board(ctx context.Context) (Board, error) {
	now := s.now().UTC()
	orders, err := s.orders.ListBoard(ctx, now.Add(-s.window))
	if err != nil {
		return Board{}, err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, o := range orders {
		for _, it := range o.Items {
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				ids = append(ids, it.ProductID)
			}
		}
	}
	products := map[string]cart.Product{}
	if len(ids) > 0 {
		products, err = s.products.GetMany(ctx, ids)
		if err != nil {
			return Board{}, fmt.Errorf("load products: %w", err)
		}
	}

	tickets := make([]Ticket, 0, len(orders))
	for _, o := range orders {
		tickets = append(tickets, newTicket(o, products))
	}
	return Board{Tickets: tickets, GeneratedAt: now}, nil
}

func newTicket(o order.Order, products map[string]cart.Product) Ticket {
	t := Ticket{
		OrderID:     o.ID,
		TableNumber: o.TableNumber,
		OrderType:   o.OrderType,
		State:       o.KitchenState,
		OrderDate:   o.OrderDate,
		Items:       make([]TicketItem, 0, len(o.Items)),
	}
	if next, ok := o.KitchenState.Next(); ok {
		t.Next = &next
	}
	for _, it := range o.Items {
		name := it.ProductID
		if p, ok := products[it.ProductID]; ok {
			name = p.Name
		}
		t.Items = append(t.Items, TicketItem{ProductID: it.ProductID, Name: name, Quantity: it.Quantity})
	}
	return t
}
