package firestore

import (
	"context"
	"errors"
	"strings"

	pfirestore "github.com/marketloop/api/internal/platform/firestore"
	"github.com/marketloop/api/internal/repositories"
)

const messageStatsCollection = "seller_message_stats"

// MessageStatsRepository reads the per-seller messaging aggregates maintained by the
// messaging pipeline. The precise average response time is optional; older documents
// only carry the sent counter.
type MessageStatsRepository struct {
	base *pfirestore.BaseRepository[messageStatsDocument]
}

// NewMessageStatsRepository constructs a Firestore-backed message stats repository.
func NewMessageStatsRepository(provider *pfirestore.Provider) (*MessageStatsRepository, error) {
	if provider == nil {
		return nil, errors.New("message stats repository requires firestore provider")
	}
	return &MessageStatsRepository{
		base: pfirestore.NewBaseRepository[messageStatsDocument](provider, messageStatsCollection, nil),
	}, nil
}

// StatsBySeller returns the seller's messaging aggregates. A missing document means
// the seller has no recorded messaging activity and is returned as zero stats.
func (r *MessageStatsRepository) StatsBySeller(ctx context.Context, sellerID string) (repositories.MessageStats, error) {
	if r == nil || r.base == nil {
		return repositories.MessageStats{}, errors.New("message stats repository not initialised")
	}
	if strings.TrimSpace(sellerID) == "" {
		return repositories.MessageStats{}, errors.New("seller id is required")
	}

	doc, err := r.base.Get(ctx, sellerID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return repositories.MessageStats{}, nil
		}
		return repositories.MessageStats{}, err
	}

	stats := repositories.MessageStats{TotalSent: doc.Data.TotalSent}
	if doc.Data.AvgResponseMinutes != nil && *doc.Data.AvgResponseMinutes >= 0 {
		value := *doc.Data.AvgResponseMinutes
		stats.AvgResponseMinutes = &value
	}
	return stats, nil
}

type messageStatsDocument struct {
	TotalSent          int      `firestore:"totalSent"`
	AvgResponseMinutes *float64 `firestore:"avgResponseMinutes"`
}

var _ repositories.MessageStatsRepository = (*MessageStatsRepository)(nil)
