package services

import (
	"context"
	"time"

	"github.com/marketloop/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	CommissionTierConfig = domain.CommissionTierConfig
	CommissionBreakdown  = domain.CommissionBreakdown
	Tier                 = domain.Tier
	SellerSignals        = domain.SellerSignals
	TrustFactor          = domain.TrustFactor
	TrustScoreResult     = domain.TrustScoreResult
	TrustLevel           = domain.TrustLevel
	VerificationStatus   = domain.VerificationStatus
)

// TierProvider serves the active commission tier configuration, caching reads against
// the backing configuration store.
type TierProvider interface {
	GetTiers(ctx context.Context) (CommissionTierConfig, error)
	CachedTiersSync() CommissionTierConfig
	Invalidate()
}

// CommissionService converts sale prices into commission breakdowns.
type CommissionService interface {
	CalculateCommission(ctx context.Context, cmd CalculateCommissionCommand) (CommissionBreakdown, error)
}

// TrustScoreService computes a seller's trust score from aggregated reputation signals.
type TrustScoreService interface {
	ScoreSeller(ctx context.Context, sellerID string) (TrustScoreResult, error)
}

// TierAdminService applies administrator updates to the commission tier configuration.
type TierAdminService interface {
	UpdateTiers(ctx context.Context, cmd UpdateTiersCommand) (TierUpdateResult, error)
}

// TiersUpdatedMessage is published after a successful tier configuration write so
// downstream consumers can refresh their own caches.
type TiersUpdatedMessage struct {
	EventID    string                      `json:"eventId"`
	EventType  string                      `json:"eventType"`
	ConfigID   string                      `json:"configId"`
	UpdatedBy  string                      `json:"updatedBy,omitempty"`
	OccurredAt time.Time                   `json:"occurredAt"`
	Tiers      domain.CommissionTierConfig `json:"tiers"`
}

// TierEventPublisher emits tier configuration change events to interested consumers.
type TierEventPublisher interface {
	PublishTiersUpdated(ctx context.Context, message TiersUpdatedMessage) (string, error)
}
