package repositories

import (
	"context"
	"time"

	"github.com/marketloop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	TierConfigs() TierConfigRepository
	SellerProfiles() SellerProfileRepository
	Ratings() RatingRepository
	Orders() OrderRepository
	MessageStats() MessageStatsRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// TierConfigRow is the persisted shape of a commission tier configuration revision.
// Rows are append-only; the active configuration is the most recently created row.
type TierConfigRow struct {
	ID           string
	LowThreshold float64
	LowRate      float64
	MidThreshold float64
	MidRate      float64
	HighRate     float64
	CreatedAt    time.Time
	CreatedBy    string
}

// TierConfigRepository reads and appends commission tier configuration revisions.
type TierConfigRepository interface {
	FindLatest(ctx context.Context) (TierConfigRow, error)
	Insert(ctx context.Context, row TierConfigRow) (TierConfigRow, error)
}

// SellerProfile carries the profile-store fields consumed by the trust score engine.
type SellerProfile struct {
	ID                 string
	DisplayName        string
	IsVerified         bool
	VerificationStatus domain.VerificationStatus
	CreatedAt          time.Time
}

// SellerProfileRepository reads seller profiles from the profile store.
type SellerProfileRepository interface {
	FindByID(ctx context.Context, sellerID string) (SellerProfile, error)
}

// RatingRepository reads the numeric ratings left for a seller.
type RatingRepository interface {
	ListBySeller(ctx context.Context, sellerID string) ([]float64, error)
}

// OrderRepository exposes order counts needed for trust scoring.
type OrderRepository interface {
	CountDelivered(ctx context.Context, sellerID string) (int, error)
}

// MessageStats summarises a seller's messaging activity. AvgResponseMinutes is nil
// when the messaging pipeline has not produced a response-time aggregate yet.
type MessageStats struct {
	TotalSent          int
	AvgResponseMinutes *float64
}

// MessageStatsRepository reads precomputed messaging aggregates per seller.
type MessageStatsRepository interface {
	StatsBySeller(ctx context.Context, sellerID string) (MessageStats, error)
}
