package events

import (
	"time"

	"github.com/scoopcreamy/ninjapos/internal/order"
)

// Change is the kind of order mutation an event announces.
type Change string

const (
	ChangeCommitted       Change = "committed"
	ChangeParked          Change = "parked"
	ChangeDeleted         Change = "deleted"
	ChangeKitchenAdvanced Change = "kitchen_advanced"
)

const (
	EventTypeOrderCommitted       = "OrderCommitted"
	EventTypeOrderParked          = "OrderParked"
	EventTypeOrderDeleted         = "OrderDeleted"
	EventTypeOrderKitchenAdvanced = "OrderKitchenAdvanced"

	orderChangedSchema = "ninjapos.order_changed.v1"
)

type route struct {
	eventName  string
	routingKey string
}

var routes = map[Change]route{
	ChangeCommitted:       {eventName: EventTypeOrderCommitted, routingKey: OrderCommittedRoutingKey},
	ChangeParked:          {eventName: EventTypeOrderParked, routingKey: OrderParkedRoutingKey},
	ChangeDeleted:         {eventName: EventTypeOrderDeleted, routingKey: OrderDeletedRoutingKey},
	ChangeKitchenAdvanced: {eventName: EventTypeOrderKitchenAdvanced, routingKey: OrderKitchenAdvancedRoutingKey},
}

var changeByEventName = func() map[string]Change {
	m := make(map[string]Change, len(routes))
	for c, r := range routes {
		m[r.eventName] = c
	}
	return m
}()

// OrderChanged is the payload of every order change event. Consumers treat it
// as a refresh signal and re-read state from the store.
type OrderChanged struct {
	OrderID      string             `json:"orderId"`
	Change       Change             `json:"change"`
	PaymentState order.PaymentState `json:"paymentState,omitempty"`
	KitchenState order.KitchenState `json:"kitchenState,omitempty"`
	TotalAmount  float64            `json:"totalAmount"`
	TableNumber  string             `json:"tableNumber,omitempty"`
	ItemCount    int                `json:"itemCount"`
	Timestamp    time.Time          `json:"timestamp"`
}

// OrderChangedFrom builds a payload from an order snapshot.
func OrderChangedFrom(o order.Order, change Change) OrderChanged {
	count := 0
	for _, it := range o.Items {
		count += it.Quantity
	}
	return OrderChanged{
		OrderID:      o.ID,
		Change:       change,
		PaymentState: o.PaymentState,
		KitchenState: o.KitchenState,
		TotalAmount:  o.TotalAmount,
		TableNumber:  o.TableNumber,
		ItemCount:    count,
	}
}
