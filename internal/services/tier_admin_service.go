package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/marketloop/api/internal/repositories"
)

const (
	tierConfigIDPrefix    = "tier_"
	tierEventIDPrefix     = "evt_"
	tiersUpdatedEventType = "commission.tiers.updated"
)

var (
	// ErrTierAdminInvalidInput signals a rejected tier configuration write.
	ErrTierAdminInvalidInput = errors.New("tier admin: invalid input")
	// ErrTierAdminUnavailable is returned when the configuration store rejects the write.
	ErrTierAdminUnavailable = errors.New("tier admin: configuration store unavailable")
)

// TierAdmin applies administrator tier configuration updates: validate, append a
// new revision row, invalidate the read cache, then publish a change event.
type TierAdmin struct {
	repo      repositories.TierConfigRepository
	tiers     TierProvider
	publisher TierEventPublisher
	now       func() time.Time
	idGen     func() string
	logger    func(context.Context, string, map[string]any)
}

type TierAdminDeps struct {
	Repo      repositories.TierConfigRepository
	Tiers     TierProvider
	Publisher TierEventPublisher
	Now       func() time.Time
	IDGen     func() string
	Logger    func(context.Context, string, map[string]any)
}

func NewTierAdmin(deps TierAdminDeps) (*TierAdmin, error) {
	if deps.Repo == nil {
		return nil, errors.New("tier admin: repository is required")
	}
	if deps.Tiers == nil {
		return nil, errors.New("tier admin: tier provider is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	idGen := deps.IDGen
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &TierAdmin{
		repo:      deps.Repo,
		tiers:     deps.Tiers,
		publisher: deps.Publisher,
		now: func() time.Time {
			return now().UTC()
		},
		idGen:  idGen,
		logger: logger,
	}, nil
}

var _ TierAdminService = (*TierAdmin)(nil)

type UpdateTiersCommand struct {
	Tiers     CommissionTierConfig
	UpdatedBy string
}

type TierUpdateResult struct {
	ConfigID  string
	Tiers     CommissionTierConfig
	CreatedAt time.Time
	EventID   string
}

// UpdateTiers validates and appends a new configuration revision. The read cache
// is invalidated before returning so subsequent reads are at most one round trip
// stale. Event publishing is best effort; a publish failure is logged and does not
// fail the update.
func (s *TierAdmin) UpdateTiers(ctx context.Context, cmd UpdateTiersCommand) (TierUpdateResult, error) {
	if err := validateTierConfig(cmd.Tiers); err != nil {
		return TierUpdateResult{}, err
	}

	row := repositories.TierConfigRow{
		ID:           tierConfigIDPrefix + s.idGen(),
		LowThreshold: cmd.Tiers.LowThreshold,
		LowRate:      cmd.Tiers.LowRate,
		MidThreshold: cmd.Tiers.MidThreshold,
		MidRate:      cmd.Tiers.MidRate,
		HighRate:     cmd.Tiers.HighRate,
		CreatedAt:    s.now(),
		CreatedBy:    strings.TrimSpace(cmd.UpdatedBy),
	}

	saved, err := s.repo.Insert(ctx, row)
	if err != nil {
		return TierUpdateResult{}, fmt.Errorf("%w: %v", ErrTierAdminUnavailable, err)
	}

	s.tiers.Invalidate()

	result := TierUpdateResult{
		ConfigID:  saved.ID,
		Tiers:     cmd.Tiers,
		CreatedAt: saved.CreatedAt,
	}

	if s.publisher != nil {
		message := TiersUpdatedMessage{
			EventID:    tierEventIDPrefix + s.idGen(),
			EventType:  tiersUpdatedEventType,
			ConfigID:   saved.ID,
			UpdatedBy:  row.CreatedBy,
			OccurredAt: s.now(),
			Tiers:      cmd.Tiers,
		}
		if _, err := s.publisher.PublishTiersUpdated(ctx, message); err != nil {
			s.logger(ctx, "tiers_updated_publish_failed", map[string]any{
				"configId": saved.ID,
				"error":    err.Error(),
			})
		} else {
			result.EventID = message.EventID
		}
	}

	return result, nil
}

func validateTierConfig(tiers CommissionTierConfig) error {
	if !(tiers.LowThreshold > 0) {
		return fmt.Errorf("%w: low threshold must be positive", ErrTierAdminInvalidInput)
	}
	if !(tiers.MidThreshold > tiers.LowThreshold) {
		return fmt.Errorf("%w: mid threshold must exceed low threshold", ErrTierAdminInvalidInput)
	}
	for name, rate := range map[string]float64{
		"low rate":  tiers.LowRate,
		"mid rate":  tiers.MidRate,
		"high rate": tiers.HighRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%w: %s must be within [0,1]", ErrTierAdminInvalidInput, name)
		}
	}
	return nil
}
