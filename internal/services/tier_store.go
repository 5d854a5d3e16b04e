package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/repositories"
)

// DefaultTierCacheTTL is the freshness window for cached tier configuration.
const DefaultTierCacheTTL = 5 * time.Minute

// ErrTierStoreInvalidConfig signals a TierStore constructed without its repository.
var ErrTierStoreInvalidConfig = errors.New("tier store: invalid configuration")

// TierStore caches the active commission tier configuration in memory. Reads never
// fail: a fetch error resolves to the last known value, or to the hardcoded defaults
// when nothing was ever cached.
type TierStore struct {
	repo   repositories.TierConfigRepository
	ttl    time.Duration
	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	mu        sync.RWMutex
	cached    *domain.CommissionTierConfig
	fetchedAt time.Time
}

type TierStoreDeps struct {
	Repo   repositories.TierConfigRepository
	TTL    time.Duration
	Now    func() time.Time
	Logger func(context.Context, string, map[string]any)
}

func NewTierStore(deps TierStoreDeps) (*TierStore, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("%w: repository is required", ErrTierStoreInvalidConfig)
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = DefaultTierCacheTTL
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &TierStore{
		repo: deps.Repo,
		ttl:  ttl,
		now: func() time.Time {
			return now().UTC()
		},
		logger: logger,
	}, nil
}

var _ TierProvider = (*TierStore)(nil)

// GetTiers returns the active configuration, fetching from the backing store only
// when the cache is empty or older than the TTL. The returned error is always nil;
// the signature keeps room for callers that treat configuration as fallible.
func (s *TierStore) GetTiers(ctx context.Context) (CommissionTierConfig, error) {
	if cached, ok := s.freshCached(); ok {
		return cached, nil
	}

	outcome := s.fetch(ctx)
	return s.resolve(ctx, outcome), nil
}

// CachedTiersSync returns the cached configuration without any I/O, regardless of
// staleness. Hot paths that must not block use this accessor; it falls back to the
// defaults when nothing was cached yet.
func (s *TierStore) CachedTiersSync() CommissionTierConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached != nil {
		return *s.cached
	}
	return domain.DefaultCommissionTiers()
}

// Invalidate clears the cache unconditionally so the next GetTiers call re-fetches.
// The administrator update flow calls this immediately after a successful write.
// A fetch already in flight may still repopulate the cache with the pre-update row;
// the next expiry or invalidation corrects it.
func (s *TierStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}

func (s *TierStore) freshCached() (CommissionTierConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil {
		return CommissionTierConfig{}, false
	}
	if s.now().Sub(s.fetchedAt) >= s.ttl {
		return CommissionTierConfig{}, false
	}
	return *s.cached, true
}

// tierFetchOutcome separates transport success from usable data so the fallback
// decision lives in one place instead of being scattered through call sites.
type tierFetchOutcome struct {
	config CommissionTierConfig
	err    error
}

func (s *TierStore) fetch(ctx context.Context) tierFetchOutcome {
	row, err := s.repo.FindLatest(ctx)
	if err != nil {
		return tierFetchOutcome{err: err}
	}
	return tierFetchOutcome{config: sanitizeTierRow(row)}
}

// resolve turns a fetch outcome into a usable configuration. Success caches and
// returns the fetched value; failure is logged and resolves to the last cached
// value, or to the defaults when the cache is empty.
func (s *TierStore) resolve(ctx context.Context, outcome tierFetchOutcome) CommissionTierConfig {
	if outcome.err == nil {
		s.mu.Lock()
		config := outcome.config
		s.cached = &config
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return config
	}

	s.logger(ctx, "tier_fetch_failed", map[string]any{"error": outcome.err.Error()})

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached != nil {
		return *s.cached
	}
	return domain.DefaultCommissionTiers()
}

// sanitizeTierRow maps a persisted row onto a configuration, substituting the
// corresponding default for any field that is not positive.
func sanitizeTierRow(row repositories.TierConfigRow) CommissionTierConfig {
	defaults := domain.DefaultCommissionTiers()
	config := CommissionTierConfig{
		LowThreshold: row.LowThreshold,
		LowRate:      row.LowRate,
		MidThreshold: row.MidThreshold,
		MidRate:      row.MidRate,
		HighRate:     row.HighRate,
	}
	if !(config.LowThreshold > 0) {
		config.LowThreshold = defaults.LowThreshold
	}
	if !(config.LowRate > 0) {
		config.LowRate = defaults.LowRate
	}
	if !(config.MidThreshold > 0) {
		config.MidThreshold = defaults.MidThreshold
	}
	if !(config.MidRate > 0) {
		config.MidRate = defaults.MidRate
	}
	if !(config.HighRate > 0) {
		config.HighRate = defaults.HighRate
	}
	return config
}
