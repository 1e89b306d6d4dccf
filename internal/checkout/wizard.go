// Package checkout drives the four-step checkout dialog of a terminal:
// customer, payment, cash tender and success.
package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/commit"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/events"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/pricing"
	"github.com/scoopcreamy/ninjapos/internal/settings"
)

type Step string

const (
	StepCustomer   Step = "customer"
	StepPayment    Step = "payment"
	StepCashTender Step = "cash_tender"
	StepSuccess    Step = "success"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrWrongStep          = errors.New("action not available at this checkout step")
	ErrWizardClosed       = errors.New("checkout already finished")
	ErrPhoneRequired      = errors.New("phone number is required")
	ErrNameRequired       = errors.New("customer name is required")
	ErrNoCustomer         = errors.New("no customer attached to this checkout")
	ErrInvalidMethod      = errors.New("unknown payment method")
	ErrInsufficientTender = commit.ErrInsufficientTender
)

type Customers interface {
	GetByPhone(ctx context.Context, phone string) (customer.Customer, error)
	Create(ctx context.Context, name, phone string) (customer.Customer, error)
}

type Committer interface {
	Commit(ctx context.Context, req commit.Request) (commit.Receipt, error)
}

// Target carries the terminal context an order is committed under.
type Target struct {
	ResumeOrderID string
	TableNumber   string
	OrderType     order.OrderType
}

// View is a snapshot of the wizard for rendering.
type View struct {
	Step            Step                `json:"step"`
	Lines           []cart.Line         `json:"lines"`
	Totals          pricing.Totals      `json:"totals"`
	Display         DisplayTotals       `json:"display"`
	Customer        *customer.Customer  `json:"customer,omitempty"`
	Phone           string              `json:"phone,omitempty"`
	NeedsEnrollment bool                `json:"needsEnrollment"`
	EnrollmentName  string              `json:"enrollmentName,omitempty"`
	Method          order.PaymentMethod `json:"method,omitempty"`
	QuickTenders    []float64           `json:"quickTenders,omitempty"`
	Receipt         *commit.Receipt     `json:"receipt,omitempty"`
}

type DisplayTotals struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	Discount   string `json:"discount"`
	FinalTotal string `json:"finalTotal"`
}

// Wizard is one checkout attempt. It is not safe for concurrent use; the
// owning terminal session serializes access.
type Wizard struct {
	step      Step
	cart      *cart.Cart
	lines     []cart.Line
	settings  settings.Settings
	target    Target
	customers Customers
	committer Committer

	phone      string
	customer   *customer.Customer
	notFound   bool
	enrollName string
	redeem     int
	method     order.PaymentMethod
	receipt    *commit.Receipt
}

// New opens a wizard over a snapshot of c. The cart itself is only touched
// when the order commits.
func New(c *cart.Cart, s settings.Settings, target Target, customers Customers, committer Committer) (*Wizard, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	return &Wizard{
		step:      StepCustomer,
		cart:      c,
		lines:     c.Lines(),
		settings:  s,
		target:    target,
		customers: customers,
		committer: committer,
	}, nil
}

func (w *Wizard) Step() Step {
	return w.step
}

func (w *Wizard) Totals() pricing.Totals {
	var r pricing.Redemption
	if w.customer != nil {
		r = pricing.Redemption{Balance: w.customer.LoyaltyPoints, Requested: w.redeem}
	}
	return pricing.Quote(w.lines, w.settings, r)
}

func (w *Wizard) NeedsEnrollment() bool {
	return w.notFound && w.customer == nil
}

// CustomerID is the attached customer, empty for guests.
func (w *Wizard) CustomerID() string {
	if w.customer == nil {
		return ""
	}
	return w.customer.ID
}

func (w *Wizard) Receipt() *commit.Receipt {
	return w.receipt
}

// LookupCustomer searches by phone. A miss switches the customer step to
// enrollment and is not an error.
func (w *Wizard) LookupCustomer(ctx context.Context, phone string) error {
	if err := w.expect(StepCustomer); err != nil {
		return err
	}
	phone = customer.NormalizePhone(phone)
	if phone == "" {
		return ErrPhoneRequired
	}

	c, err := w.customers.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		w.phone = phone
		w.customer = nil
		w.notFound = true
		w.redeem = 0
		return nil
	case err != nil:
		return err
	}

	w.phone = phone
	w.customer = &c
	w.notFound = false
	w.enrollName = ""
	w.redeem = 0
	return nil
}

func (w *Wizard) SetEnrollmentName(name string) error {
	if err := w.expect(StepCustomer); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if !w.NeedsEnrollment() {
		return ErrWrongStep
	}
	w.enrollName = name
	return nil
}

// Guest drops any customer and moves on to payment.
func (w *Wizard) Guest() error {
	if err := w.expect(StepCustomer); err != nil {
		return err
	}
	w.phone = ""
	w.customer = nil
	w.notFound = false
	w.enrollName = ""
	w.redeem = 0
	w.step = StepPayment
	return nil
}

// Proceed moves to payment, enrolling the looked-up phone first when a name
// was supplied for it.
func (w *Wizard) Proceed(ctx context.Context) error {
	if err := w.expect(StepCustomer); err != nil {
		return err
	}
	if w.NeedsEnrollment() && w.enrollName != "" {
		c, err := w.customers.Create(ctx, w.enrollName, w.phone)
		if err != nil {
			return err
		}
		w.customer = &c
		w.notFound = false
	}
	w.step = StepPayment
	return nil
}

// Redeem sets the requested points. The effective amount is clamped to the
// customer's balance when totals are computed.
func (w *Wizard) Redeem(points int) error {
	if w.step == StepSuccess {
		return ErrWizardClosed
	}
	if w.step != StepPayment && w.step != StepCustomer {
		return ErrWrongStep
	}
	if w.customer == nil {
		return ErrNoCustomer
	}
	w.redeem = pricing.RedeemablePoints(points, w.customer.LoyaltyPoints)
	return nil
}

// SelectPayment picks the method. Cash opens the tender step; every other
// method commits straight away.
func (w *Wizard) SelectPayment(ctx context.Context, method order.PaymentMethod) error {
	if err := w.expect(StepPayment); err != nil {
		return err
	}
	if !method.Chargeable() {
		return ErrInvalidMethod
	}
	w.method = method
	if method == order.MethodCash {
		w.step = StepCashTender
		return nil
	}
	return w.commit(ctx, 0)
}

// Confirm settles a cash payment. A short tender is refused without any write.
func (w *Wizard) Confirm(ctx context.Context, tendered float64) error {
	if err := w.expect(StepCashTender); err != nil {
		return err
	}
	if !pricing.CanTender(tendered, w.Totals().FinalTotal) {
		return ErrInsufficientTender
	}
	return w.commit(ctx, tendered)
}

func (w *Wizard) Back() error {
	switch w.step {
	case StepPayment:
		w.step = StepCustomer
	case StepCashTender:
		w.step = StepPayment
	case StepSuccess:
		return ErrWizardClosed
	default:
		return ErrWrongStep
	}
	return nil
}

// Cancel reports whether the wizard could be discarded. A finished wizard
// has already committed and cannot be cancelled.
func (w *Wizard) Cancel() error {
	if w.step == StepSuccess {
		return ErrWizardClosed
	}
	return nil
}

func (w *Wizard) View() View {
	totals := w.Totals()
	v := View{
		Step:   w.step,
		Lines:  append([]cart.Line(nil), w.lines...),
		Totals: totals,
		Display: DisplayTotals{
			Subtotal:   pricing.Display(totals.Subtotal),
			Tax:        pricing.Display(totals.Tax),
			Discount:   pricing.Display(totals.Discount),
			FinalTotal: pricing.Display(totals.FinalTotal),
		},
		Customer:        w.customer,
		Phone:           w.phone,
		NeedsEnrollment: w.NeedsEnrollment(),
		EnrollmentName:  w.enrollName,
		Method:          w.method,
		Receipt:         w.receipt,
	}
	if w.step == StepCashTender {
		v.QuickTenders = pricing.QuickTenders(totals.FinalTotal)
	}
	return v
}

// commit runs the pipeline; only success advances the step and clears the cart.
func (w *Wizard) commit(ctx context.Context, tendered float64) error {
	req := commit.Request{
		ResumeOrderID: w.target.ResumeOrderID,
		Lines:         w.lines,
		Settings:      w.settings,
		Totals:        w.Totals(),
		Method:        w.method,
		Tendered:      tendered,
		TableNumber:   w.target.TableNumber,
		OrderType:     w.target.OrderType,
		Meta:          events.MetaFromContext(ctx),
	}
	req.CustomerID = w.CustomerID()

	receipt, err := w.committer.Commit(ctx, req)
	if err != nil {
		w.target.ResumeOrderID = commit.RetryOrderID(err, w.target.ResumeOrderID)
		return err
	}

	w.receipt = &receipt
	w.cart.Clear()
	w.step = StepSuccess
	return nil
}

func (w *Wizard) expect(step Step) error {
	if w.step == StepSuccess {
		return ErrWizardClosed
	}
	if w.step != step {
		return ErrWrongStep
	}
	return nil
}
