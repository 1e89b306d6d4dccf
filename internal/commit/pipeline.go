// Package commit turns a finalized cart into a persisted order and applies
// the loyalty settlement that follows a successful charge.
package commit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/pricing"
	"github.com/scoopcreamy/ninjapos/internal/punchcard"
	"github.com/scoopcreamy/ninjapos/internal/settings"
)

type LoyaltyStore interface {
	ApplyVisit(ctx context.Context, id string, v customer.Visit) (customer.Customer, error)
}

type PunchCards interface {
	Apply(ctx context.Context, customerID string, fn func(punchcard.Card) punchcard.Card) (punchcard.Card, error)
}

type Products interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]cart.Product, error)
}

type Publisher interface {
	PublishOrderChanged(ctx context.Context, meta events.EventMeta, payload events.OrderChanged) error
}

// Request is a finalized checkout. Totals must come from pricing.Quote over
// the same Lines and Settings.
type Request struct {
	ResumeOrderID string
	Lines         []cart.Line
	Settings      settings.Settings
	Totals        pricing.Totals
	CustomerID    string
	Method        order.PaymentMethod
	Tendered      float64
	TableNumber   string
	OrderType     order.OrderType
	Meta          events.EventMeta
}

type Receipt struct {
	Order        order.Order        `json:"order"`
	Lines        []cart.Line        `json:"lines"`
	Totals       pricing.Totals     `json:"totals"`
	Change       float64            `json:"change"`
	EarnedPoints int                `json:"earnedPoints"`
	Customer     *customer.Customer `json:"customer,omitempty"`
	PunchCard    *punchcard.Card    `json:"punchCard,omitempty"`
	Punch        punchcard.Outcome  `json:"punch"`
	RewardName   string             `json:"rewardName,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

type ParkRequest struct {
	ResumeOrderID string
	Lines         []cart.Line
	Totals        pricing.Totals
	CustomerID    string
	TableNumber   string
	OrderType     order.OrderType
	Meta          events.EventMeta
}

// Recalled is a parked order rebuilt as cart lines.
type Recalled struct {
	OrderID     string      `json:"orderId"`
	TableNumber string      `json:"tableNumber,omitempty"`
	CustomerID  string      `json:"customerId,omitempty"`
	Lines       []cart.Line `json:"lines"`
}

type Pipeline struct {
	orders    order.Repository
	customers LoyaltyStore
	punches   PunchCards
	products  Products
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewPipeline(orders order.Repository, customers LoyaltyStore, punches PunchCards, products Products, publisher Publisher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		orders:    orders,
		customers: customers,
		punches:   punches,
		products:  products,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Commit stores the order and its items, releases it to the kitchen, then
// settles loyalty. Only order, item and release failures are returned; the
// settlement steps log and record a warning instead.
func (p *Pipeline) Commit(ctx context.Context, req Request) (Receipt, error) {
	if err := validateLines(req.Lines); err != nil {
		return Receipt{}, err
	}
	if !req.Method.Chargeable() {
		return Receipt{}, ErrInvalidMethod
	}

	totals := req.Totals
	tendered, change := 0.0, 0.0
	if req.Method == order.MethodCash {
		if !pricing.CanTender(req.Tendered, totals.FinalTotal) {
			return Receipt{}, ErrInsufficientTender
		}
		tendered = req.Tendered
		change = pricing.Change(req.Tendered, totals.FinalTotal)
	}

	o := order.Order{
		ID:             req.ResumeOrderID,
		TotalAmount:    totals.FinalTotal,
		PaymentMethod:  req.Method,
		OrderType:      orderType(req.OrderType),
		CustomerID:     req.CustomerID,
		TenderedAmount: tendered,
		ChangeAmount:   change,
		TaxAmount:      totals.Tax,
		TaxRate:        totals.TaxRate,
		DiscountAmount: totals.Discount,
		PointsRedeemed: totals.PointsRedeemed,
		TableNumber:    strings.TrimSpace(req.TableNumber),
		OrderDate:      p.now().UTC(),
	}

	if err := p.store(ctx, &o, req.Lines, req.ResumeOrderID != ""); err != nil {
		return Receipt{}, err
	}
	if err := p.orders.Release(ctx, o.ID); err != nil {
		return Receipt{}, &Error{Step: StepRelease, OrderID: o.ID, Err: err}
	}
	o.PaymentState = order.PaymentCompleted
	o.KitchenState = order.KitchenNew

	receipt := Receipt{
		Order:  o,
		Lines:  req.Lines,
		Totals: totals,
		Change: change,
	}

	if req.CustomerID != "" {
		p.settleLoyalty(ctx, req, &receipt)
		p.settlePunchCard(ctx, req, &receipt)
	}

	p.publish(ctx, req.Meta, o, events.ChangeCommitted)

	p.logger.Info("order committed",
		zap.String("order_id", o.ID),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.Float64("total", o.TotalAmount),
		zap.Int("items", len(o.Items)),
		zap.Bool("resumed", req.ResumeOrderID != ""))

	return receipt, nil
}

// Park stores the cart as a pending order without charging it.
func (p *Pipeline) Park(ctx context.Context, req ParkRequest) (order.Order, error) {
	if err := validateLines(req.Lines); err != nil {
		return order.Order{}, err
	}
	table := strings.TrimSpace(req.TableNumber)
	if table == "" {
		return order.Order{}, ErrTableRequired
	}

	o := order.Order{
		ID:             req.ResumeOrderID,
		TotalAmount:    req.Totals.FinalTotal,
		PaymentMethod:  order.MethodPending,
		OrderType:      orderType(req.OrderType),
		CustomerID:     req.CustomerID,
		TaxAmount:      req.Totals.Tax,
		TaxRate:        req.Totals.TaxRate,
		DiscountAmount: req.Totals.Discount,
		PointsRedeemed: req.Totals.PointsRedeemed,
		TableNumber:    table,
		OrderDate:      p.now().UTC(),
	}

	if err := p.store(ctx, &o, req.Lines, req.ResumeOrderID != ""); err != nil {
		return order.Order{}, err
	}

	p.publish(ctx, req.Meta, o, events.ChangeParked)
	p.logger.Info("order parked", zap.String("order_id", o.ID), zap.String("table", table))
	return o, nil
}

// Recall rebuilds the cart of a parked order. Unit prices come from the
// stored items, names and categories from the catalog.
func (p *Pipeline) Recall(ctx context.Context, orderID string) (Recalled, error) {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return Recalled{}, err
	}
	if o.PaymentState != order.PaymentPending {
		return Recalled{}, ErrNotPending
	}

	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := p.products.GetMany(ctx, ids)
	if err != nil {
		return Recalled{}, fmt.Errorf("load products: %w", err)
	}

	var lines []cart.Line
	index := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		if i, ok := index[it.ProductID]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		prod, ok := products[it.ProductID]
		if !ok {
			prod = cart.Product{ID: it.ProductID, Name: it.ProductID}
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, cart.Line{
			ProductID: it.ProductID,
			Name:      prod.Name,
			Category:  prod.Category,
			UnitPrice: it.PriceAtTime,
			Quantity:  it.Quantity,
		})
	}

	return Recalled{
		OrderID:     o.ID,
		TableNumber: o.TableNumber,
		CustomerID:  o.CustomerID,
		Lines:       lines,
	}, nil
}

// DeletePending removes a parked order, items first.
func (p *Pipeline) DeletePending(ctx context.Context, orderID string, meta events.EventMeta) error {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.PaymentState != order.PaymentPending {
		return ErrNotPending
	}

	if err := p.orders.DeleteItems(ctx, orderID); err != nil {
		return err
	}
	if err := p.orders.DeletePending(ctx, orderID); err != nil {
		if errors.Is(err, order.ErrNotPending) {
			return ErrNotPending
		}
		return err
	}

	p.publish(ctx, meta, o, events.ChangeDeleted)
	p.logger.Info("pending order deleted", zap.String("order_id", orderID))
	return nil
}

func (p *Pipeline) ListPending(ctx context.Context) ([]order.Order, error) {
	return p.orders.ListPending(ctx)
}

// store writes the order row (insert or in-place update of a parked order),
// then all items concurrently.
func (p *Pipeline) store(ctx context.Context, o *order.Order, lines []cart.Line, resume bool) error {
	if resume {
		if err := p.orders.UpdatePending(ctx, o); err != nil {
			if errors.Is(err, order.ErrNotPending) {
				err = ErrNotPending
			}
			return &Error{Step: StepOrder, OrderID: o.ID, Err: err}
		}
		if err := p.orders.DeleteItems(ctx, o.ID); err != nil {
			return &Error{Step: StepItems, OrderID: o.ID, Err: err}
		}
	} else if err := p.orders.Insert(ctx, o); err != nil {
		return &Error{Step: StepOrder, Err: err}
	}

	items := make([]order.Item, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range lines {
		g.Go(func() error {
			it := order.Item{
				OrderID:     o.ID,
				ProductID:   l.ProductID,
				Quantity:    l.Quantity,
				PriceAtTime: l.UnitPrice,
			}
			if err := p.orders.InsertItem(gctx, &it); err != nil {
				return err
			}
			items[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !resume && p.discard(ctx, o.ID) {
			return &Error{Step: StepItems, Err: err}
		}
		return &Error{Step: StepItems, OrderID: o.ID, Err: err}
	}
	o.Items = items
	return nil
}

// discard removes a freshly inserted order whose items failed, so it never
// shows up as a parked order. It reports whether the row is gone.
func (p *Pipeline) discard(ctx context.Context, orderID string) bool {
	ctx = context.WithoutCancel(ctx)
	if err := p.orders.DeleteItems(ctx, orderID); err != nil {
		p.logger.Warn("discard failed order items", zap.String("order_id", orderID), zap.Error(err))
		return false
	}
	if err := p.orders.DeletePending(ctx, orderID); err != nil {
		p.logger.Warn("discard failed order", zap.String("order_id", orderID), zap.Error(err))
		return false
	}
	return true
}

func (p *Pipeline) settleLoyalty(ctx context.Context, req Request, r *Receipt) {
	c, err := p.customers.ApplyVisit(ctx, req.CustomerID, customer.Visit{
		Earned:   r.Totals.PointsEarned,
		Redeemed: r.Totals.PointsRedeemed,
		At:       p.now(),
	})
	if err != nil {
		p.logger.Error("loyalty update failed, order kept",
			zap.String("order_id", r.Order.ID),
			zap.String("customer_id", req.CustomerID),
			zap.Error(err))
		r.Warnings = append(r.Warnings, "loyalty points were not updated")
		return
	}
	r.Customer = &c
	r.EarnedPoints = r.Totals.PointsEarned
}

func (p *Pipeline) settlePunchCard(ctx context.Context, req Request, r *Receipt) {
	if !punchcard.Qualifies(req.Settings, r.Totals.Pretotal) {
		return
	}

	var outcome punchcard.Outcome
	card, err := p.punches.Apply(ctx, req.CustomerID, func(c punchcard.Card) punchcard.Card {
		next, o := punchcard.Advance(c, req.Settings, r.Totals.Pretotal)
		outcome = o
		return next
	})
	if err != nil {
		p.logger.Error("punch card update failed, order kept",
			zap.String("order_id", r.Order.ID),
			zap.String("customer_id", req.CustomerID),
			zap.Error(err))
		r.Warnings = append(r.Warnings, "punch card was not updated")
		return
	}
	r.PunchCard = &card
	r.Punch = outcome
	if outcome.Completed {
		r.RewardName = req.Settings.PunchRewardName
	}
}

func (p *Pipeline) publish(ctx context.Context, meta events.EventMeta, o order.Order, change events.Change) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishOrderChanged(ctx, meta, events.OrderChangedFrom(o, change)); err != nil {
		p.logger.Warn("publish order change",
			zap.String("order_id", o.ID),
			zap.String("change", string(change)),
			zap.Error(err))
	}
}

func validateLines(lines []cart.Line) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			return ErrInvalidLine
		}
	}
	return nil
}

func orderType(t order.OrderType) order.OrderType {
	if t.Valid() {
		return t
	}
	return order.DineIn
}
