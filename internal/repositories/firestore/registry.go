package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

// Registry assembles the Firestore-backed repositories over a shared provider.
type Registry struct {
	provider *pfirestore.Provider

	tierConfigs    *TierConfigRepository
	sellerProfiles *SellerProfileRepository
	ratings        *RatingRepository
	orders         *OrderRepository
	messageStats   *MessageStatsRepository
}

// NewRegistry constructs all repositories against the given provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	tierConfigs, err := NewTierConfigRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build tier config repository: %w", err)
	}
	sellerProfiles, err := NewSellerProfileRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build seller profile repository: %w", err)
	}
	ratings, err := NewRatingRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build rating repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	messageStats, err := NewMessageStatsRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build message stats repository: %w", err)
	}

	return &Registry{
		provider:       provider,
		tierConfigs:    tierConfigs,
		sellerProfiles: sellerProfiles,
		ratings:        ratings,
		orders:         orders,
		messageStats:   messageStats,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) TierConfigs() repositories.TierConfigRepository { return r.tierConfigs }

func (r *Registry) SellerProfiles() repositories.SellerProfileRepository { return r.sellerProfiles }

func (r *Registry) Ratings() repositories.RatingRepository { return r.ratings }

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) MessageStats() repositories.MessageStatsRepository { return r.messageStats }

var _ repositories.Registry = (*Registry)(nil)
