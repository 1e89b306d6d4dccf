package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/catalog"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/middleware"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/punchcard"
	"github.com/scoopcreamy/ninjapos/internal/settings"
	"github.com/scoopcreamy/ninjapos/internal/terminal"
)

const readTimeout = 3 * time.Second

type Catalog interface {
	List(ctx context.Context, f catalog.Filter) ([]cart.Product, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
}

type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

type Customers interface {
	GetByPhone(ctx context.Context, phone string) (customer.Customer, error)
	Create(ctx context.Context, name, phone string) (customer.Customer, error)
}

type PunchCards interface {
	Get(ctx context.Context, customerID string) (punchcard.Card, error)
}

type Orders interface {
	Get(ctx context.Context, orderID string) (order.Order, error)
	ListPending(ctx context.Context) ([]order.Order, error)
}

type POSHandler struct {
	terminals *terminal.Service
	catalog   Catalog
	settings  SettingsReader
	customers Customers
	punches   PunchCards
	orders    Orders
	logger    *zap.Logger
}

func NewPOSHandler(terminals *terminal.Service, catalog Catalog, settings SettingsReader, customers Customers,
	punches PunchCards, orders Orders, logger *zap.Logger) *POSHandler {
	return &POSHandler{
		terminals: terminals,
		catalog:   catalog,
		settings:  settings,
		customers: customers,
		punches:   punches,
		orders:    orders,
		logger:    logger,
	}
}

func (h *POSHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "pos-service",
	})
}

func (h *POSHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	products, err := h.catalog.List(ctx, catalog.Filter{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("q"),
	})
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	if products == nil {
		products = []cart.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *POSHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *POSHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	s, err := h.settings.Get(ctx)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type customerLookup struct {
	Customer  customer.Customer `json:"customer"`
	PunchCard punchcard.Card    `json:"punchCard"`
}

// LookupCustomer returns the customer and their punch card progress. A
// customer without a card yet gets an empty one.
func (h *POSHandler) LookupCustomer(w http.ResponseWriter, r *http.Request) {
	phone := customer.NormalizePhone(r.URL.Query().Get("phone"))
	if phone == "" {
		writeError(w, r, http.StatusBadRequest, "missing phone")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	c, err := h.customers.GetByPhone(ctx, phone)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}

	card, err := h.punches.Get(ctx, c.ID)
	switch {
	case errors.Is(err, punchcard.ErrNotFound):
		card = punchcard.Card{CustomerID: c.ID}
	case err != nil:
		writeFailure(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, customerLookup{Customer: c, PunchCard: card})
}

func (h *POSHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	c, err := h.customers.Create(ctx, body.Name, body.Phone)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *POSHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.terminals.Cart(middleware.GetTerminalID(r.Context())))
}

func (h *POSHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
	}
	if err := decodeJSON(r, &body); err != nil || body.ProductID == "" {
		writeError(w, r, http.StatusBadRequest, "productId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	snap, err := h.terminals.AddItem(ctx, middleware.GetTerminalID(r.Context()), body.ProductID)
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	snap, err := h.terminals.UpdateQuantity(middleware.GetTerminalID(r.Context()), chi.URLParam(r, "productId"), body.Delta)
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	snap, err := h.terminals.RemoveItem(middleware.GetTerminalID(r.Context()), chi.URLParam(r, "productId"))
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) SetTable(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TableNumber string          `json:"tableNumber"`
		OrderType   order.OrderType `json:"orderType"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	snap, err := h.terminals.SetTable(middleware.GetTerminalID(r.Context()), body.TableNumber, body.OrderType)
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, h.terminals.Suggestions(ctx, middleware.GetTerminalID(r.Context())))
}

// Park stores the cart as a pending order. Writes are detached from the
// client connection so a dropped request cannot stop them half way.
func (h *POSHandler) Park(w http.ResponseWriter, r *http.Request) {
	o, err := h.terminals.Park(context.WithoutCancel(r.Context()), middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusCreated, o, err)
}

func (h *POSHandler) Recall(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	snap, err := h.terminals.Recall(ctx, middleware.GetTerminalID(r.Context()), chi.URLParam(r, "orderId"))
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	v, err := h.terminals.StartCheckout(ctx, middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusCreated, v, err)
}

func (h *POSHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	v, err := h.terminals.Checkout(middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutLookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	v, err := h.terminals.LookupCustomer(ctx, middleware.GetTerminalID(r.Context()), body.Phone)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutEnroll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	v, err := h.terminals.SetEnrollmentName(middleware.GetTerminalID(r.Context()), body.Name)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutGuest(w http.ResponseWriter, r *http.Request) {
	v, err := h.terminals.Guest(middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutProceed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	v, err := h.terminals.Proceed(ctx, middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutRedeem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Points int `json:"points"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	v, err := h.terminals.Redeem(middleware.GetTerminalID(r.Context()), body.Points)
	h.respond(w, r, http.StatusOK, v, err)
}

// CheckoutPayment commits immediately for non-cash methods, so like Park it
// runs detached from the client connection.
func (h *POSHandler) CheckoutPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method order.PaymentMethod `json:"method"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	v, err := h.terminals.SelectPayment(context.WithoutCancel(r.Context()), middleware.GetTerminalID(r.Context()), body.Method)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tendered float64 `json:"tendered"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	v, err := h.terminals.Confirm(context.WithoutCancel(r.Context()), middleware.GetTerminalID(r.Context()), body.Tendered)
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CheckoutBack(w http.ResponseWriter, r *http.Request) {
	v, err := h.terminals.Back(middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusOK, v, err)
}

func (h *POSHandler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.terminals.CloseCheckout(middleware.GetTerminalID(r.Context()))
	h.respond(w, r, http.StatusOK, snap, err)
}

func (h *POSHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	orders, err := h.orders.ListPending(ctx)
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *POSHandler) DeletePending(w http.ResponseWriter, r *http.Request) {
	if err := h.terminals.DeletePending(context.WithoutCancel(r.Context()), chi.URLParam(r, "orderId")); err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *POSHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	o, err := h.orders.Get(ctx, chi.URLParam(r, "orderId"))
	h.respond(w, r, http.StatusOK, o, err)
}

func (h *POSHandler) respond(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		writeFailure(w, r, h.logger, err)
		return
	}
	writeJSON(w, status, v)
}
