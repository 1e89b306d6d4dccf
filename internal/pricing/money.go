package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	quickFifty   = decimal.NewFromInt(50)
	quickHundred = decimal.NewFromInt(100)
)

// Display formats an amount with two decimals, rounding half away from zero.
func Display(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Round2 rounds to cents. Only used at the presentation and tender boundary.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// CanTender is the cash confirmation guard. Both sides are compared in cents
// so paying the displayed total is always enough.
func CanTender(tendered, finalTotal float64) bool {
	return cents(tendered).GreaterThanOrEqual(cents(finalTotal))
}

// Change returns tendered minus the payable total in cents. Callers check
// CanTender first; a short tender yields a negative value.
func Change(tendered, finalTotal float64) float64 {
	return cents(tendered).Sub(cents(finalTotal)).InexactFloat64()
}

// QuickTenders lists one-tap cash amounts: the exact total followed by the
// fixed notes that cover it.
func QuickTenders(finalTotal float64) []float64 {
	total := cents(finalTotal)
	out := []float64{total.InexactFloat64()}
	for _, note := range []decimal.Decimal{quickFifty, quickHundred} {
		if note.GreaterThan(total) {
			out = append(out, note.InexactFloat64())
		}
	}
	return out
}

func cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
