package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/platform/textutil"
)

// ErrCommissionInvalidInput signals a calculator constructed or invoked without
// required collaborators.
var ErrCommissionInvalidInput = errors.New("commission: invalid input")

// CommissionCalculator resolves the active tier configuration and derives a
// commission breakdown for a sale price.
type CommissionCalculator struct {
	tiers TierProvider
}

type CommissionCalculatorDeps struct {
	Tiers TierProvider
}

func NewCommissionCalculator(deps CommissionCalculatorDeps) (*CommissionCalculator, error) {
	if deps.Tiers == nil {
		return nil, fmt.Errorf("%w: tier provider is required", ErrCommissionInvalidInput)
	}
	return &CommissionCalculator{tiers: deps.Tiers}, nil
}

var _ CommissionService = (*CommissionCalculator)(nil)

type CalculateCommissionCommand struct {
	Price       float64
	PromoActive bool
}

// CalculateCommission fetches the current tiers and runs the pure calculation.
// Price positivity is the caller's concern; zero and negative prices produce a
// correspondingly zero or negative breakdown.
func (c *CommissionCalculator) CalculateCommission(ctx context.Context, cmd CalculateCommissionCommand) (CommissionBreakdown, error) {
	tiers, err := c.tiers.GetTiers(ctx)
	if err != nil {
		// GetTiers degrades to defaults internally; an error here is a programmer error.
		return CommissionBreakdown{}, err
	}
	return Calculate(cmd.Price, tiers, cmd.PromoActive), nil
}

// Calculate is the pure commission computation over a price, a tier configuration
// and a promotion flag. An active promotion zeroes the rate. Otherwise both
// thresholds fall into the mid tier: prices strictly below the low threshold use
// the low rate, prices strictly above the mid threshold use the high rate.
//
// The commission amount is floored to minor units so the platform cut never
// exceeds rate*price; the net amount is rounded half up on the remainder.
func Calculate(price float64, tiers CommissionTierConfig, promoActive bool) CommissionBreakdown {
	if promoActive {
		return CommissionBreakdown{
			Price:            price,
			Rate:             0,
			Tier:             domain.TierPromo,
			TierLabel:        "Promotion (0%)",
			CommissionAmount: 0,
			NetSellerAmount:  domain.Round2(price),
			PromoApplied:     true,
		}
	}

	tier := tiers.TierFor(price)
	rate := tiers.RateFor(tier)
	commission := domain.FloorCents(price * rate)
	net := domain.Round2(price - commission)

	return CommissionBreakdown{
		Price:            price,
		Rate:             rate,
		Tier:             tier,
		TierLabel:        tierLabel(tier, rate),
		CommissionAmount: commission,
		NetSellerAmount:  net,
		PromoApplied:     false,
	}
}

// tierLabel builds the display label from the same boundary result as the rate so
// the two can never disagree.
func tierLabel(tier Tier, rate float64) string {
	percent := textutil.FormatPercent(rate)
	switch tier {
	case domain.TierLow:
		return fmt.Sprintf("Standard rate (%s)", percent)
	case domain.TierMid:
		return fmt.Sprintf("Reduced rate (%s)", percent)
	case domain.TierHigh:
		return fmt.Sprintf("Volume rate (%s)", percent)
	default:
		return fmt.Sprintf("Promotion (%s)", percent)
	}
}
