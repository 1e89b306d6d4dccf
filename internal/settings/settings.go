package settings

// Settings is the store-wide loyalty and tax configuration. It is read once per
// transaction and passed by value to the calculators that need it.
type Settings struct {
	PointsRatio      float64 `json:"pointsRatio"`
	RedemptionRatio  float64 `json:"redemptionRatio"`
	TaxPercentage    float64 `json:"taxPercentage"`
	PunchTarget      int     `json:"punchTarget"`
	PunchMinPurchase float64 `json:"punchMinPurchase"`
	PunchRewardName  string  `json:"punchRewardName"`
}

// Defaults mirrors the seeded loyalty_settings row.
func Defaults() Settings {
	return Settings{
		PointsRatio:      1,
		RedemptionRatio:  100,
		TaxPercentage:    6,
		PunchTarget:      10,
		PunchMinPurchase: 0,
		PunchRewardName:  "Free Drink",
	}
}

// PunchCardEnabled reports whether settlements should touch punch cards at all.
func (s Settings) PunchCardEnabled() bool {
	return s.PunchTarget > 0
}
