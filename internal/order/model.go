package order

import "time"

// Item is one persisted line. PriceAtTime freezes the unit price so later
// catalog changes never alter history.
type Item struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	PriceAtTime float64   `json:"priceAtTime"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Order struct {
	ID             string        `json:"id"`
	TotalAmount    float64       `json:"totalAmount"`
	PaymentState   PaymentState  `json:"paymentState"`
	KitchenState   KitchenState  `json:"kitchenState,omitempty"`
	PaymentMethod  PaymentMethod `json:"paymentMethod"`
	OrderType      OrderType     `json:"orderType"`
	CustomerID     string        `json:"customerId,omitempty"`
	TenderedAmount float64       `json:"tenderedAmount"`
	ChangeAmount   float64       `json:"changeAmount"`
	TaxAmount      float64       `json:"taxAmount"`
	TaxRate        float64       `json:"taxRate"`
	DiscountAmount float64       `json:"discountAmount"`
	PointsRedeemed int           `json:"pointsRedeemed"`
	TableNumber    string        `json:"tableNumber,omitempty"`
	OrderDate      time.Time     `json:"orderDate"`
	Items          []Item        `json:"items,omitempty"`
}

// ItemsTotal is Σ(priceAtTime × quantity).
func (o Order) ItemsTotal() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.PriceAtTime * float64(it.Quantity)
	}
	return sum
}
