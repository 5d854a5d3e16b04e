package domain

import "math"

// Tier identifies the price bracket a sale falls into.
type Tier string

const (
	TierLow   Tier = "low"
	TierMid   Tier = "mid"
	TierHigh  Tier = "high"
	TierPromo Tier = "promo"
)

// CommissionTierConfig holds the administrator-configurable commission rate brackets.
// Thresholds are currency amounts, rates are fractions in [0,1]. LowThreshold must be
// strictly below MidThreshold.
type CommissionTierConfig struct {
	LowThreshold float64
	LowRate      float64
	MidThreshold float64
	MidRate      float64
	HighRate     float64
}

// DefaultCommissionTiers returns the hardcoded fallback configuration used whenever
// the remote configuration store is unreachable or has never been populated.
func DefaultCommissionTiers() CommissionTierConfig {
	return CommissionTierConfig{
		LowThreshold: 500,
		LowRate:      0.12,
		MidThreshold: 2000,
		MidRate:      0.10,
		HighRate:     0.05,
	}
}

// TierFor resolves the bracket for a sale price. Both threshold values fall into the
// mid tier: prices strictly below LowThreshold are low, prices strictly above
// MidThreshold are high, everything in between (inclusive) is mid.
func (c CommissionTierConfig) TierFor(price float64) Tier {
	switch {
	case price < c.LowThreshold:
		return TierLow
	case price <= c.MidThreshold:
		return TierMid
	default:
		return TierHigh
	}
}

// RateFor returns the fractional commission rate for a bracket.
func (c CommissionTierConfig) RateFor(tier Tier) float64 {
	switch tier {
	case TierLow:
		return c.LowRate
	case TierMid:
		return c.MidRate
	case TierHigh:
		return c.HighRate
	default:
		return 0
	}
}

// CommissionBreakdown is the immutable result of a commission calculation. Amounts are
// rounded to currency minor units; the engine never persists this value.
type CommissionBreakdown struct {
	Price            float64
	Rate             float64
	Tier             Tier
	TierLabel        string
	CommissionAmount float64
	NetSellerAmount  float64
	PromoApplied     bool
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// FloorCents truncates to two decimal places. The commission amount is floored rather
// than rounded so the platform's cut never exceeds rate*price; the seller keeps the
// sub-cent remainder. A small epsilon compensates for binary float representation of
// exact decimal products (e.g. 415*0.12 must stay 49.80, not 49.79).
func FloorCents(value float64) float64 {
	if value < 0 {
		return -FloorCents(-value)
	}
	return math.Floor(value*100+1e-9) / 100
}
