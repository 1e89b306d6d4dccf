package commit

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidLine        = errors.New("cart line needs a product and a positive quantity")
	ErrInvalidMethod      = errors.New("payment method cannot settle an order")
	ErrInsufficientTender = errors.New("tendered amount is below the payable total")
	ErrTableRequired      = errors.New("table number is required to park an order")
	ErrNotPending         = errors.New("order is not pending")
)

// Step names the fatal part of a commit that failed.
type Step string

const (
	StepOrder   Step = "order"
	StepItems   Step = "items"
	StepRelease Step = "release"
)

// Error is returned when the order or its items could not be stored. OrderID
// is set once an order row exists so the caller can retry in place.
type Error struct {
	Step    Step
	OrderID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("commit %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryOrderID returns the order a retry should resume after err. A stored
// order is resumed in place. An order that is no longer pending is dropped
// so the retry inserts a new one. Otherwise current is kept.
func RetryOrderID(err error, current string) string {
	if errors.Is(err, ErrNotPending) {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Step != StepOrder && cerr.OrderID != "" {
		return cerr.OrderID
	}
	return current
}
