// Package pricing derives the financial totals of a transaction from cart
// lines and the store settings.
package pricing

import (
	"math"

	"github.com/scoopcreamy/ninjapos/internal/cart"
	"github.com/scoopcreamy/ninjapos/internal/settings"
)

// Redemption describes the points a customer asks to spend. The zero value is
// a guest with nothing to redeem.
type Redemption struct {
	Balance   int
	Requested int
}

// Totals are kept at full float precision. Round only for display.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	TaxRate        float64 `json:"taxRate"`
	Tax            float64 `json:"tax"`
	Pretotal       float64 `json:"pretotal"`
	PointsRedeemed int     `json:"pointsRedeemed"`
	Discount       float64 `json:"discount"`
	FinalTotal     float64 `json:"finalTotal"`
	PointsEarned   int     `json:"pointsEarned"`
}

func Quote(lines []cart.Line, s settings.Settings, r Redemption) Totals {
	subtotal := cart.Subtotal(lines)
	tax := subtotal * (s.TaxPercentage / 100)
	pretotal := subtotal + tax

	points := RedeemablePoints(r.Requested, r.Balance)
	discount := RedemptionDiscount(points, s.RedemptionRatio)

	return Totals{
		Subtotal:       subtotal,
		TaxRate:        s.TaxPercentage,
		Tax:            tax,
		Pretotal:       pretotal,
		PointsRedeemed: points,
		Discount:       discount,
		FinalTotal:     math.Max(0, pretotal-discount),
		PointsEarned:   EarnedPoints(pretotal, s.PointsRatio),
	}
}

// RedeemablePoints clamps a request to [0, balance].
func RedeemablePoints(requested, balance int) int {
	if requested <= 0 || balance <= 0 {
		return 0
	}
	return min(requested, balance)
}

// RedemptionDiscount converts points to currency. ratio is points per one
// currency unit; a non-positive ratio yields no discount.
func RedemptionDiscount(points int, ratio float64) float64 {
	if points <= 0 || ratio <= 0 {
		return 0
	}
	return float64(points) / ratio
}

// EarnedPoints is computed on the pre-discount total: spend, not payment,
// drives rewards.
func EarnedPoints(pretotal, pointsRatio float64) int {
	if pretotal <= 0 || pointsRatio <= 0 {
		return 0
	}
	return int(math.Floor(pretotal * pointsRatio))
}
