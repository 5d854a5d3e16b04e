package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

const tierConfigCollection = "commission_tiers"

// TierConfigRepository persists commission tier configuration revisions in Firestore.
// Revisions are append-only; the active configuration is the newest document.
type TierConfigRepository struct {
	base *pfirestore.BaseRepository[tierConfigDocument]
}

// NewTierConfigRepository constructs a Firestore-backed tier configuration repository.
func NewTierConfigRepository(provider *pfirestore.Provider) (*TierConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("tier config repository requires firestore provider")
	}
	return &TierConfigRepository{
		base: pfirestore.NewBaseRepository[tierConfigDocument](provider, tierConfigCollection, nil),
	}, nil
}

// FindLatest returns the most recently created configuration revision.
func (r *TierConfigRepository) FindLatest(ctx context.Context) (repositories.TierConfigRow, error) {
	if r == nil || r.base == nil {
		return repositories.TierConfigRow{}, errors.New("tier config repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc).Limit(1)
	})
	if err != nil {
		return repositories.TierConfigRow{}, err
	}
	if len(docs) == 0 {
		return repositories.TierConfigRow{}, pfirestore.WrapError(
			tierConfigCollection+".findlatest",
			status.Error(codes.NotFound, "no tier configuration rows"),
		)
	}

	row := toTierConfigRow(docs[0].Data)
	row.ID = docs[0].ID
	if row.CreatedAt.IsZero() {
		row.CreatedAt = docs[0].CreateTime
	}
	return row, nil
}

// Insert appends a new configuration revision.
func (r *TierConfigRepository) Insert(ctx context.Context, row repositories.TierConfigRow) (repositories.TierConfigRow, error) {
	if r == nil || r.base == nil {
		return repositories.TierConfigRow{}, errors.New("tier config repository not initialised")
	}
	if strings.TrimSpace(row.ID) == "" {
		return repositories.TierConfigRow{}, errors.New("tier config row id is required")
	}

	doc := fromTierConfigRow(row)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := r.base.Set(ctx, row.ID, doc); err != nil {
		return repositories.TierConfigRow{}, err
	}

	saved := toTierConfigRow(doc)
	saved.ID = row.ID
	return saved, nil
}

type tierConfigDocument struct {
	LowThreshold float64   `firestore:"lowThreshold"`
	LowRate      float64   `firestore:"lowRate"`
	MidThreshold float64   `firestore:"midThreshold"`
	MidRate      float64   `firestore:"midRate"`
	HighRate     float64   `firestore:"highRate"`
	CreatedAt    time.Time `firestore:"createdAt"`
	CreatedBy    string    `firestore:"createdBy,omitempty"`
}

func toTierConfigRow(doc tierConfigDocument) repositories.TierConfigRow {
	return repositories.TierConfigRow{
		LowThreshold: doc.LowThreshold,
		LowRate:      doc.LowRate,
		MidThreshold: doc.MidThreshold,
		MidRate:      doc.MidRate,
		HighRate:     doc.HighRate,
		CreatedAt:    doc.CreatedAt,
		CreatedBy:    doc.CreatedBy,
	}
}

func fromTierConfigRow(row repositories.TierConfigRow) tierConfigDocument {
	return tierConfigDocument{
		LowThreshold: row.LowThreshold,
		LowRate:      row.LowRate,
		MidThreshold: row.MidThreshold,
		MidRate:      row.MidRate,
		HighRate:     row.HighRate,
		CreatedAt:    row.CreatedAt,
		CreatedBy:    strings.TrimSpace(row.CreatedBy),
	}
}

var _ repositories.TierConfigRepository = (*TierConfigRepository)(nil)
