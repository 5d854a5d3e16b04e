package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketloop/api/internal/repositories"
)

// ErrSignalInvalidInput signals a missing seller identifier or collaborator.
var ErrSignalInvalidInput = errors.New("signals: invalid input")

// SignalCollector gathers the raw reputation inputs for a seller.
type SignalCollector interface {
	Collect(ctx context.Context, sellerID string) (SellerSignals, error)
}

// SignalAggregator queries each reputation source independently. A failing source
// is logged and degrades to its zero value; it never blocks the other sources and
// never surfaces as an error to the caller.
type SignalAggregator struct {
	profiles repositories.SellerProfileRepository
	ratings  repositories.RatingRepository
	orders   repositories.OrderRepository
	messages repositories.MessageStatsRepository
	logger   func(context.Context, string, map[string]any)
}

type SignalAggregatorDeps struct {
	Profiles repositories.SellerProfileRepository
	Ratings  repositories.RatingRepository
	Orders   repositories.OrderRepository
	Messages repositories.MessageStatsRepository
	Logger   func(context.Context, string, map[string]any)
}

func NewSignalAggregator(deps SignalAggregatorDeps) (*SignalAggregator, error) {
	if deps.Profiles == nil {
		return nil, fmt.Errorf("%w: profile repository is required", ErrSignalInvalidInput)
	}
	if deps.Ratings == nil {
		return nil, fmt.Errorf("%w: rating repository is required", ErrSignalInvalidInput)
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("%w: order repository is required", ErrSignalInvalidInput)
	}
	if deps.Messages == nil {
		return nil, fmt.Errorf("%w: message stats repository is required", ErrSignalInvalidInput)
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &SignalAggregator{
		profiles: deps.Profiles,
		ratings:  deps.Ratings,
		orders:   deps.Orders,
		messages: deps.Messages,
		logger:   logger,
	}, nil
}

var _ SignalCollector = (*SignalAggregator)(nil)

// Collect returns the seller's reputation signals. The only error it returns is a
// blank seller id; per-source failures leave the corresponding fields at their
// lowest-scoring zero values.
func (a *SignalAggregator) Collect(ctx context.Context, sellerID string) (SellerSignals, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return SellerSignals{}, fmt.Errorf("%w: seller id is required", ErrSignalInvalidInput)
	}

	signals := SellerSignals{SellerID: sellerID}

	if profile, err := a.profiles.FindByID(ctx, sellerID); err != nil {
		a.logDegraded(ctx, sellerID, "profile", err)
	} else {
		signals.IsVerified = profile.IsVerified
		signals.VerificationStatus = profile.VerificationStatus
		signals.AccountCreatedAt = profile.CreatedAt
	}

	if ratings, err := a.ratings.ListBySeller(ctx, sellerID); err != nil {
		a.logDegraded(ctx, sellerID, "ratings", err)
	} else {
		signals.Ratings = ratings
	}

	if count, err := a.orders.CountDelivered(ctx, sellerID); err != nil {
		a.logDegraded(ctx, sellerID, "orders", err)
	} else {
		signals.CompletedOrderCount = count
	}

	if stats, err := a.messages.StatsBySeller(ctx, sellerID); err != nil {
		a.logDegraded(ctx, sellerID, "messages", err)
	} else {
		signals.TotalMessagesSent = stats.TotalSent
		signals.AvgResponseMinutes = stats.AvgResponseMinutes
	}

	return signals, nil
}

func (a *SignalAggregator) logDegraded(ctx context.Context, sellerID, source string, err error) {
	a.logger(ctx, "trust_signal_degraded", map[string]any{
		"sellerId": sellerID,
		"source":   source,
		"error":    err.Error(),
	})
}
