package terminal

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/checkout"
	"github.com/scoopcreamy/ninjapos/internal/commit"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/pricing"
	"github.com/scoopcreamy/ninjapos/internal/settings"
	"github.com/scoopcreamy/ninjapos/internal/suggest"
)

var (
	ErrCheckoutOpen = errors.New("finish or cancel the open checkout first")
	ErrNoCheckout   = errors.New("no checkout in progress")
	ErrLineNotFound = errors.New("product is not in the cart")
	ErrOrderType    = errors.New("unknown order type")
)

type Catalog interface {
	Get(ctx context.Context, productID string) (cart.Product, error)
}

type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

type Pipeline interface {
	checkout.Committer
	Park(ctx context.Context, req commit.ParkRequest) (order.Order, error)
	Recall(ctx context.Context, orderID string) (commit.Recalled, error)
	DeletePending(ctx context.Context, orderID string, meta events.EventMeta) error
}

type Suggester interface {
	ForCart(ctx context.Context, cartIDs []string) ([]suggest.Suggestion, error)
}

type Service struct {
	registry  *Registry
	catalog   Catalog
	settings  SettingsSource
	customers checkout.Customers
	pipeline  Pipeline
	suggester Suggester
	logger    *zap.Logger
}

func NewService(registry *Registry, catalog Catalog, settings SettingsSource, customers checkout.Customers,
	pipeline Pipeline, suggester Suggester, logger *zap.Logger) *Service {
	return &Service{
		registry:  registry,
		catalog:   catalog,
		settings:  settings,
		customers: customers,
		pipeline:  pipeline,
		suggester: suggester,
		logger:    logger,
	}
}

func (s *Service) Cart(terminalID string) Snapshot {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot()
}

// AddItem adds one unit at the product's current catalog price.
func (s *Service) AddItem(ctx context.Context, terminalID, productID string) (Snapshot, error) {
	return s.editCart(terminalID, func(sess *Session) error {
		p, err := s.catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		sess.cart.Add(p)
		return nil
	})
}

func (s *Service) UpdateQuantity(terminalID, productID string, delta int) (Snapshot, error) {
	return s.editCart(terminalID, func(sess *Session) error {
		if !sess.cart.UpdateQuantity(productID, delta) {
			return ErrLineNotFound
		}
		return nil
	})
}

func (s *Service) RemoveItem(terminalID, productID string) (Snapshot, error) {
	return s.editCart(terminalID, func(sess *Session) error {
		if !sess.cart.Remove(productID) {
			return ErrLineNotFound
		}
		return nil
	})
}

func (s *Service) SetTable(terminalID, table string, orderType order.OrderType) (Snapshot, error) {
	if orderType != "" && !orderType.Valid() {
		return Snapshot{}, ErrOrderType
	}
	return s.editCart(terminalID, func(sess *Session) error {
		sess.table = strings.TrimSpace(table)
		if orderType != "" {
			sess.orderType = orderType
		}
		return nil
	})
}

// Suggestions never fails the caller; a broken history read yields none.
func (s *Service) Suggestions(ctx context.Context, terminalID string) []suggest.Suggestion {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	ids := sess.cart.ProductIDs()
	sess.mu.Unlock()

	out, err := s.suggester.ForCart(ctx, ids)
	if err != nil {
		s.logger.Warn("suggestions unavailable", zap.String("terminal_id", terminalID), zap.Error(err))
		return []suggest.Suggestion{}
	}
	return out
}

// Park stores the cart against its table and frees the terminal. An open
// checkout contributes its customer and redemption, then closes.
func (s *Service) Park(ctx context.Context, terminalID string) (order.Order, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	req := commit.ParkRequest{
		ResumeOrderID: sess.orderID,
		Lines:         sess.cart.Lines(),
		TableNumber:   sess.table,
		OrderType:     sess.orderType,
		Meta:          events.MetaFromContext(ctx),
	}
	if sess.checkoutOpen() {
		req.Totals = sess.wizard.Totals()
		req.CustomerID = sess.wizard.CustomerID()
	} else {
		st, err := s.settings.Get(ctx)
		if err != nil {
			return order.Order{}, err
		}
		req.Totals = pricing.Quote(req.Lines, st, pricing.Redemption{})
	}

	o, err := s.pipeline.Park(ctx, req)
	if err != nil {
		sess.orderID = commit.RetryOrderID(err, sess.orderID)
		return order.Order{}, err
	}

	sess.cart.Clear()
	sess.wizard = nil
	sess.reset()
	return o, nil
}

// Recall loads a parked order into the terminal, replacing its cart.
func (s *Service) Recall(ctx context.Context, terminalID, orderID string) (Snapshot, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.checkoutOpen() {
		return Snapshot{}, ErrCheckoutOpen
	}
	r, err := s.pipeline.Recall(ctx, orderID)
	if err != nil {
		return Snapshot{}, err
	}

	sess.cart.Replace(r.Lines)
	sess.orderID = r.OrderID
	sess.table = r.TableNumber
	return sess.snapshot(), nil
}

// DeletePending removes a parked order and detaches it from any terminal
// that had recalled it.
func (s *Service) DeletePending(ctx context.Context, orderID string) error {
	if err := s.pipeline.DeletePending(ctx, orderID, events.MetaFromContext(ctx)); err != nil {
		return err
	}
	s.registry.each(func(sess *Session) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.orderID == orderID {
			sess.orderID = ""
		}
	})
	return nil
}

func (s *Service) StartCheckout(ctx context.Context, terminalID string) (checkout.View, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.checkoutOpen() {
		return sess.wizard.View(), nil
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return checkout.View{}, err
	}
	w, err := checkout.New(sess.cart, st, checkout.Target{
		ResumeOrderID: sess.orderID,
		TableNumber:   sess.table,
		OrderType:     sess.orderType,
	}, s.customers, s.pipeline)
	if err != nil {
		return checkout.View{}, err
	}
	sess.wizard = w
	return w.View(), nil
}

func (s *Service) Checkout(terminalID string) (checkout.View, error) {
	return s.withWizard(terminalID, func(*checkout.Wizard) error { return nil })
}

func (s *Service) LookupCustomer(ctx context.Context, terminalID, phone string) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.LookupCustomer(ctx, phone)
	})
}

func (s *Service) SetEnrollmentName(terminalID, name string) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.SetEnrollmentName(name)
	})
}

func (s *Service) Guest(terminalID string) (checkout.View, error) {
	return s.withWizard(terminalID, (*checkout.Wizard).Guest)
}

func (s *Service) Proceed(ctx context.Context, terminalID string) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.Proceed(ctx)
	})
}

func (s *Service) Redeem(terminalID string, points int) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.Redeem(points)
	})
}

func (s *Service) SelectPayment(ctx context.Context, terminalID string, method order.PaymentMethod) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.SelectPayment(ctx, method)
	})
}

func (s *Service) Confirm(ctx context.Context, terminalID string, tendered float64) (checkout.View, error) {
	return s.withWizard(terminalID, func(w *checkout.Wizard) error {
		return w.Confirm(ctx, tendered)
	})
}

func (s *Service) Back(terminalID string) (checkout.View, error) {
	return s.withWizard(terminalID, (*checkout.Wizard).Back)
}

// CloseCheckout cancels an unfinished wizard or dismisses a finished one.
// Either way the cart is left as the wizard left it.
func (s *Service) CloseCheckout(terminalID string) (Snapshot, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.wizard == nil {
		return Snapshot{}, ErrNoCheckout
	}
	if err := sess.wizard.Cancel(); err != nil && !errors.Is(err, checkout.ErrWizardClosed) {
		return Snapshot{}, err
	}
	sess.wizard = nil
	return sess.snapshot(), nil
}

func (s *Service) editCart(terminalID string, fn func(*Session) error) (Snapshot, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.checkoutOpen() {
		return Snapshot{}, ErrCheckoutOpen
	}
	if err := fn(sess); err != nil {
		return Snapshot{}, err
	}
	return sess.snapshot(), nil
}

// withWizard runs fn on the open wizard. When fn completes the sale the
// terminal forgets the resumed order and table.
func (s *Service) withWizard(terminalID string, fn func(*checkout.Wizard) error) (checkout.View, error) {
	sess := s.registry.Session(terminalID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	w := sess.wizard
	if w == nil {
		return checkout.View{}, ErrNoCheckout
	}
	before := w.Step()
	err := fn(w)
	if before != checkout.StepSuccess && w.Step() == checkout.StepSuccess {
		sess.reset()
		s.logger.Info("checkout completed", zap.String("terminal_id", terminalID))
	}
	if err != nil {
		sess.orderID = commit.RetryOrderID(err, sess.orderID)
		return checkout.View{}, err
	}
	return w.View(), nil
}
