package order

// PaymentState is the transaction-side status of an order.
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentCancelled PaymentState = "cancelled"
)

// KitchenState is the preparation status shown on the kitchen board. The
// zero value means the order has not been released to the kitchen.
type KitchenState string

const (
	KitchenUnreleased KitchenState = ""
	KitchenNew        KitchenState = "new"
	KitchenCooking    KitchenState = "cooking"
	KitchenReady      KitchenState = "ready"
	KitchenCompleted  KitchenState = "completed"
)

var kitchenFlow = map[KitchenState]KitchenState{
	KitchenNew:     KitchenCooking,
	KitchenCooking: KitchenReady,
	KitchenReady:   KitchenCompleted,
}

// Next returns the only legal forward transition from s.
func (s KitchenState) Next() (KitchenState, bool) {
	next, ok := kitchenFlow[s]
	return next, ok
}

// CanAdvance reports whether from -> to is the single forward step.
func CanAdvance(from, to KitchenState) bool {
	next, ok := from.Next()
	return ok && next == to
}

func (s KitchenState) Valid() bool {
	switch s {
	case KitchenNew, KitchenCooking, KitchenReady, KitchenCompleted:
		return true
	}
	return false
}

type OrderType string

const (
	DineIn   OrderType = "dine_in"
	Takeaway OrderType = "takeaway"
)

func (t OrderType) Valid() bool {
	return t == DineIn || t == Takeaway
}

// PaymentMethod values stored on the order. Parked orders use MethodPending.
type PaymentMethod string

const (
	MethodCash      PaymentMethod = "cash"
	MethodCard      PaymentMethod = "card"
	MethodDuitNowQR PaymentMethod = "duitnow_qr"
	MethodEWallet   PaymentMethod = "ewallet"
	MethodPending   PaymentMethod = "pending"
)

// Chargeable reports whether m can settle an order.
func (m PaymentMethod) Chargeable() bool {
	switch m {
	case MethodCash, MethodCard, MethodDuitNowQR, MethodEWallet:
		return true
	}
	return false
}
