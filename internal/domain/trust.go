package domain

import "time"

// TrustLevel is the discrete reputation band derived from a seller's trust percentage.
type TrustLevel string

const (
	TrustLevelNew      TrustLevel = "new"
	TrustLevelBuilding TrustLevel = "building"
	TrustLevelTrusted  TrustLevel = "trusted"
	TrustLevelVerified TrustLevel = "verified"
	TrustLevelTop      TrustLevel = "top"
)

// Label returns the human-readable display name for the level.
func (l TrustLevel) Label() string {
	switch l {
	case TrustLevelTop:
		return "Top seller"
	case TrustLevelVerified:
		return "Verified seller"
	case TrustLevelTrusted:
		return "Trusted seller"
	case TrustLevelBuilding:
		return "Building reputation"
	default:
		return "New seller"
	}
}

// TrustLevelFor bands a percentage into a level. Every boundary is inclusive at its
// lower bound: exactly 85 is top, exactly 84 is verified.
func TrustLevelFor(percentage int) TrustLevel {
	switch {
	case percentage >= 85:
		return TrustLevelTop
	case percentage >= 70:
		return TrustLevelVerified
	case percentage >= 50:
		return TrustLevelTrusted
	case percentage >= 25:
		return TrustLevelBuilding
	default:
		return TrustLevelNew
	}
}

// VerificationStatus mirrors the profile store's seller verification state.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
)

// SellerSignals bundles the raw reputation inputs collected from the external stores.
// Missing data is represented by zero values (and a nil AvgResponseMinutes), never by
// an error: every dimension degrades to its lowest-scoring input.
type SellerSignals struct {
	SellerID            string
	IsVerified          bool
	VerificationStatus  VerificationStatus
	Ratings             []float64
	CompletedOrderCount int
	AccountCreatedAt    time.Time
	TotalMessagesSent   int
	AvgResponseMinutes  *float64
}

// TrustFactor is one independently scored reputation dimension. Detail is a
// deterministic human-readable explanation of the score it accompanies.
type TrustFactor struct {
	Name   string
	Score  int
	Max    int
	Detail string
}

// TrustScoreResult is the immutable aggregate produced by the trust score engine.
// It is computed fresh on every request and never cached by the engine.
type TrustScoreResult struct {
	Total      int
	Max        int
	Percentage int
	Level      TrustLevel
	Label      string
	Factors    []TrustFactor
}
