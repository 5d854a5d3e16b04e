package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

const ratingCollection = "ratings"

// RatingRepository reads the numeric ratings left for sellers.
type RatingRepository struct {
	base *pfirestore.BaseRepository[ratingDocument]
}

// NewRatingRepository constructs a Firestore-backed rating repository.
func NewRatingRepository(provider *pfirestore.Provider) (*RatingRepository, error) {
	if provider == nil {
		return nil, errors.New("rating repository requires firestore provider")
	}
	return &RatingRepository{
		base: pfirestore.NewBaseRepository[ratingDocument](provider, ratingCollection, nil),
	}, nil
}

// ListBySeller returns the raw rating scores recorded for the seller. Sellers
// without ratings yield an empty slice, not an error.
func (r *RatingRepository) ListBySeller(ctx context.Context, sellerID string) ([]float64, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("rating repository not initialised")
	}
	if strings.TrimSpace(sellerID) == "" {
		return nil, errors.New("seller id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("sellerId", "==", sellerID).Select("score")
	})
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(docs))
	for _, doc := range docs {
		scores = append(scores, doc.Data.Score)
	}
	return scores, nil
}

type ratingDocument struct {
	SellerID string  `firestore:"sellerId"`
	Score    float64 `firestore:"score"`
}

var _ repositories.RatingRepository = (*RatingRepository)(nil)
