// Package punchcard tracks per-customer visit counters that pay out a reward
// every punchTarget qualifying purchases.
package punchcard

import "github.com/scoopcreamy/ninjapos/internal/settings"

type Card struct {
	CustomerID     string `json:"customerId"`
	CurrentPunches int    `json:"currentPunches"`
	TotalCompleted int    `json:"totalCompleted"`
}

type Outcome struct {
	Punched   bool `json:"punched"`
	Completed bool `json:"completed"`
}

// Qualifies reports whether a purchase earns a punch. The basis is the
// pre-discount total (subtotal + tax).
func Qualifies(s settings.Settings, pretotal float64) bool {
	return s.PunchCardEnabled() && pretotal >= s.PunchMinPurchase
}

// Advance applies one purchase to card. After it returns,
// 0 <= CurrentPunches < PunchTarget holds whenever the card is enabled.
func Advance(card Card, s settings.Settings, pretotal float64) (Card, Outcome) {
	if !s.PunchCardEnabled() {
		return card, Outcome{}
	}

	var out Outcome
	if pretotal >= s.PunchMinPurchase {
		card.CurrentPunches++
		out.Punched = true
	}
	if card.CurrentPunches < 0 {
		card.CurrentPunches = 0
	}
	if card.CurrentPunches >= s.PunchTarget {
		card.CurrentPunches = 0
		card.TotalCompleted++
		out.Completed = true
	}
	return card, out
}
