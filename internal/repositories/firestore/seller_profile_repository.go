package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/marketloop/api/internal/domain"
	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

const profileCollection = "profiles"

// SellerProfileRepository reads seller profiles from Firestore.
type SellerProfileRepository struct {
	base *pfirestore.BaseRepository[sellerProfileDocument]
}

// NewSellerProfileRepository constructs a Firestore-backed profile repository.
func NewSellerProfileRepository(provider *pfirestore.Provider) (*SellerProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("seller profile repository requires firestore provider")
	}
	return &SellerProfileRepository{
		base: pfirestore.NewBaseRepository[sellerProfileDocument](provider, profileCollection, nil),
	}, nil
}

// FindByID loads the seller profile by user ID.
func (r *SellerProfileRepository) FindByID(ctx context.Context, sellerID string) (repositories.SellerProfile, error) {
	if r == nil || r.base == nil {
		return repositories.SellerProfile{}, errors.New("seller profile repository not initialised")
	}
	if strings.TrimSpace(sellerID) == "" {
		return repositories.SellerProfile{}, errors.New("seller id is required")
	}

	doc, err := r.base.Get(ctx, sellerID)
	if err != nil {
		return repositories.SellerProfile{}, err
	}

	profile := toSellerProfile(doc.Data)
	profile.ID = doc.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	return profile, nil
}

type sellerProfileDocument struct {
	DisplayName        string    `firestore:"displayName"`
	IsVerified         bool      `firestore:"isVerified"`
	VerificationStatus string    `firestore:"verificationStatus"`
	CreatedAt          time.Time `firestore:"createdAt"`
}

func toSellerProfile(doc sellerProfileDocument) repositories.SellerProfile {
	return repositories.SellerProfile{
		DisplayName:        strings.TrimSpace(doc.DisplayName),
		IsVerified:         doc.IsVerified,
		VerificationStatus: normaliseVerificationStatus(doc.VerificationStatus, doc.IsVerified),
		CreatedAt:          doc.CreatedAt,
	}
}

func normaliseVerificationStatus(raw string, verified bool) domain.VerificationStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.VerificationVerified):
		return domain.VerificationVerified
	case string(domain.VerificationPending):
		return domain.VerificationPending
	case string(domain.VerificationUnverified):
		return domain.VerificationUnverified
	}
	// Older profile documents only carry the boolean flag.
	if verified {
		return domain.VerificationVerified
	}
	return domain.VerificationUnverified
}

var _ repositories.SellerProfileRepository = (*SellerProfileRepository)(nil)
