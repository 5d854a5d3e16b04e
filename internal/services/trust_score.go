package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/platform/textutil"
)

// ErrTrustScoreInvalidInput signals a calculator constructed without its collaborators.
var ErrTrustScoreInvalidInput = errors.New("trust score: invalid input")

// Fixed ceilings per factor. They sum to 100 so the total doubles as a percentage.
const (
	maxVerificationScore   = 25
	maxRatingScore         = 25
	maxResponsivenessScore = 15
	maxTransactionScore    = 20
	maxAccountAgeScore     = 15
	maxTrustScore          = maxVerificationScore + maxRatingScore + maxResponsivenessScore + maxTransactionScore + maxAccountAgeScore
)

// TrustScoreCalculator aggregates a seller's signals and derives the weighted score.
type TrustScoreCalculator struct {
	signals SignalCollector
	now     func() time.Time
}

type TrustScoreCalculatorDeps struct {
	Signals SignalCollector
	Now     func() time.Time
}

func NewTrustScoreCalculator(deps TrustScoreCalculatorDeps) (*TrustScoreCalculator, error) {
	if deps.Signals == nil {
		return nil, fmt.Errorf("%w: signal collector is required", ErrTrustScoreInvalidInput)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TrustScoreCalculator{
		signals: deps.Signals,
		now: func() time.Time {
			return now().UTC()
		},
	}, nil
}

var _ TrustScoreService = (*TrustScoreCalculator)(nil)

// ScoreSeller collects the seller's signals and computes the score. The result is
// never cached; every call reflects the freshest available signals.
func (c *TrustScoreCalculator) ScoreSeller(ctx context.Context, sellerID string) (TrustScoreResult, error) {
	signals, err := c.signals.Collect(ctx, sellerID)
	if err != nil {
		return TrustScoreResult{}, err
	}
	return Score(signals, c.now()), nil
}

// Score is the pure trust score computation. Each of the five factors is scored
// independently from the signals and summed; the factor's detail string is produced
// by the same function as its numeric score so the two cannot drift apart.
func Score(signals SellerSignals, now time.Time) TrustScoreResult {
	factors := []TrustFactor{
		verificationFactor(signals),
		ratingFactor(signals),
		responsivenessFactor(signals),
		transactionFactor(signals),
		accountAgeFactor(signals, now),
	}

	total := 0
	for _, factor := range factors {
		total += factor.Score
	}

	percentage := int(math.Round(float64(total) / maxTrustScore * 100))
	level := domain.TrustLevelFor(percentage)

	return TrustScoreResult{
		Total:      total,
		Max:        maxTrustScore,
		Percentage: percentage,
		Level:      level,
		Label:      level.Label(),
		Factors:    factors,
	}
}

func verificationFactor(signals SellerSignals) TrustFactor {
	factor := TrustFactor{Name: "Verification", Max: maxVerificationScore}
	switch {
	case signals.IsVerified || signals.VerificationStatus == domain.VerificationVerified:
		factor.Score = 25
		factor.Detail = "Identity verified"
	case signals.VerificationStatus == domain.VerificationPending:
		factor.Score = 10
		factor.Detail = "Verification pending"
	default:
		factor.Score = 0
		factor.Detail = "Not verified"
	}
	return factor
}

func ratingFactor(signals SellerSignals) TrustFactor {
	factor := TrustFactor{Name: "Rating", Max: maxRatingScore}
	count := len(signals.Ratings)
	if count == 0 {
		factor.Detail = "No ratings yet"
		return factor
	}

	sum := 0.0
	for _, rating := range signals.Ratings {
		sum += rating
	}
	avg := sum / float64(count)

	volumeWeight := math.Min(float64(count)/10, 1)
	// Ratings outside the 1..5 scale come from malformed documents; the factor
	// stays within its ceiling rather than corrupting the total.
	factor.Score = clampScore(int(math.Round(avg/5*20+volumeWeight*5)), maxRatingScore)
	factor.Detail = fmt.Sprintf("%.1f average from %s ratings", avg, textutil.FormatCount(count))
	return factor
}

func clampScore(score, ceiling int) int {
	if score < 0 {
		return 0
	}
	if score > ceiling {
		return ceiling
	}
	return score
}

func responsivenessFactor(signals SellerSignals) TrustFactor {
	factor := TrustFactor{Name: "Responsiveness", Max: maxResponsivenessScore}
	if signals.AvgResponseMinutes == nil {
		// Coarse heuristic when the messaging pipeline has no timing aggregate.
		switch {
		case signals.TotalMessagesSent > 5:
			factor.Score = 7
			factor.Detail = "Active messaging, reply time unknown"
		case signals.TotalMessagesSent > 0:
			factor.Score = 3
			factor.Detail = "Limited messaging history"
		default:
			factor.Score = 0
			factor.Detail = "No messages yet"
		}
		return factor
	}

	minutes := *signals.AvgResponseMinutes
	switch {
	case minutes <= 30:
		factor.Score = 15
	case minutes <= 60:
		factor.Score = 13
	case minutes <= 120:
		factor.Score = 11
	case minutes <= 360:
		factor.Score = 8
	case minutes <= 720:
		factor.Score = 5
	case minutes <= 1440:
		factor.Score = 3
	default:
		factor.Score = 1
	}
	factor.Detail = fmt.Sprintf("Avg reply: %s min", textutil.FormatCount(int(math.Round(minutes))))
	return factor
}

func transactionFactor(signals SellerSignals) TrustFactor {
	factor := TrustFactor{Name: "Transactions", Max: maxTransactionScore}
	count := signals.CompletedOrderCount
	switch {
	case count >= 50:
		factor.Score = 20
	case count >= 20:
		factor.Score = 16
	case count >= 10:
		factor.Score = 12
	case count >= 5:
		factor.Score = 8
	case count >= 1:
		factor.Score = 4
	default:
		factor.Score = 0
	}
	if count == 0 {
		factor.Detail = "No delivered orders yet"
	} else {
		factor.Detail = fmt.Sprintf("%s delivered orders", textutil.FormatCount(count))
	}
	return factor
}

func accountAgeFactor(signals SellerSignals, now time.Time) TrustFactor {
	factor := TrustFactor{Name: "Account age", Max: maxAccountAgeScore}

	// A missing profile leaves AccountCreatedAt zero; treat it as a brand new
	// account rather than letting the elapsed duration explode.
	days := 0
	if !signals.AccountCreatedAt.IsZero() && now.After(signals.AccountCreatedAt) {
		days = int(now.Sub(signals.AccountCreatedAt).Hours() / 24)
	}

	switch {
	case days >= 365:
		factor.Score = 15
	case days >= 180:
		factor.Score = 12
	case days >= 90:
		factor.Score = 9
	case days >= 30:
		factor.Score = 5
	default:
		factor.Score = 2
	}
	factor.Detail = fmt.Sprintf("Member for %s days", textutil.FormatCount(days))
	return factor
}
