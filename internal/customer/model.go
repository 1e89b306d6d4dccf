package customer

import "time"

type Customer struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	LoyaltyPoints int        `json:"loyaltyPoints"`
	LastVisit     *time.Time `json:"lastVisit,omitempty"`
	TotalVisits   int        `json:"totalVisits"`
	JoinedAt      time.Time  `json:"joinedAt"`
}

// Visit is the loyalty effect of one settled order.
type Visit struct {
	Earned   int
	Redeemed int
	At       time.Time
}
