package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

const (
	orderCollection      = "orders"
	orderStatusDelivered = "delivered"
)

// OrderRepository exposes order aggregates needed by the trust score engine.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil),
	}, nil
}

// CountDelivered counts the seller's orders in the delivered state using a
// server-side aggregation.
func (r *OrderRepository) CountDelivered(ctx context.Context, sellerID string) (int, error) {
	if r == nil || r.base == nil {
		return 0, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(sellerID) == "" {
		return 0, errors.New("seller id is required")
	}

	count, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerId", "==", sellerID).Where("status", "==", orderStatusDelivered)
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

type orderDocument struct {
	SellerID string `firestore:"sellerId"`
	Status   string `firestore:"status"`
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
