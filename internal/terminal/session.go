// Package terminal holds per-terminal POS state: the cart, the table it is
// for, the parked order being resumed and an open checkout.
package terminal

import (
	"sync"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/checkout"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/pricing"
)

// Session is guarded by its mutex for the whole of each operation, which
// makes every terminal a single writer.
type Session struct {
	mu        sync.Mutex
	id        string
	cart      *cart.Cart
	orderID   string
	table     string
	orderType order.OrderType
	wizard    *checkout.Wizard
}

func newSession(id string) *Session {
	return &Session{id: id, cart: cart.New(), orderType: order.DineIn}
}

type Snapshot struct {
	TerminalID      string          `json:"terminalId"`
	Lines           []cart.Line     `json:"lines"`
	ItemCount       int             `json:"itemCount"`
	Subtotal        float64         `json:"subtotal"`
	SubtotalDisplay string          `json:"subtotalDisplay"`
	CurrentOrderID  string          `json:"currentOrderId,omitempty"`
	TableNumber     string          `json:"tableNumber,omitempty"`
	OrderType       order.OrderType `json:"orderType"`
	CheckoutStep    checkout.Step   `json:"checkoutStep,omitempty"`
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() Snapshot {
	lines := s.cart.Lines()
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	snap := Snapshot{
		TerminalID:      s.id,
		Lines:           lines,
		ItemCount:       count,
		Subtotal:        s.cart.Subtotal(),
		SubtotalDisplay: pricing.Display(s.cart.Subtotal()),
		CurrentOrderID:  s.orderID,
		TableNumber:     s.table,
		OrderType:       s.orderType,
	}
	if s.wizard != nil {
		snap.CheckoutStep = s.wizard.Step()
	}
	return snap
}

// checkoutOpen reports an unfinished wizard. A finished one is dropped so the
// terminal can start the next sale.
func (s *Session) checkoutOpen() bool {
	if s.wizard == nil {
		return false
	}
	if s.wizard.Step() == checkout.StepSuccess {
		s.wizard = nil
		return false
	}
	return true
}

// reset forgets the resumed order and table after it was settled or parked.
func (s *Session) reset() {
	s.orderID = ""
	s.table = ""
	s.orderType = order.DineIn
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Session returns the terminal's session, creating an empty one on first use.
func (r *Registry) Session(terminalID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[terminalID]
	if !ok {
		s = newSession(terminalID)
		r.sessions[terminalID] = s
	}
	return s
}

// each visits every session without holding the registry lock during fn.
func (r *Registry) each(fn func(*Session)) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		fn(s)
	}
}
