package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/repositories"
)

type fakeTierConfigRepo struct {
	row       repositories.TierConfigRow
	err       error
	insertErr error
	calls     int
	inserted  []repositories.TierConfigRow
}

func (f *fakeTierConfigRepo) FindLatest(ctx context.Context) (repositories.TierConfigRow, error) {
	f.calls++
	if f.err != nil {
		return repositories.TierConfigRow{}, f.err
	}
	return f.row, nil
}

func (f *fakeTierConfigRepo) Insert(ctx context.Context, row repositories.TierConfigRow) (repositories.TierConfigRow, error) {
	if f.insertErr != nil {
		return repositories.TierConfigRow{}, f.insertErr
	}
	f.inserted = append(f.inserted, row)
	return row, nil
}

func newTierStoreForTest(t *testing.T, repo repositories.TierConfigRepository, now func() time.Time) *TierStore {
	t.Helper()
	store, err := NewTierStore(TierStoreDeps{Repo: repo, Now: now})
	if err != nil {
		t.Fatalf("NewTierStore: %v", err)
	}
	return store
}

func TestTierStoreCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{row: repositories.TierConfigRow{
		ID: "tier_1", LowThreshold: 600, LowRate: 0.14, MidThreshold: 2500, MidRate: 0.09, HighRate: 0.04,
	}}
	store := newTierStoreForTest(t, repo, func() time.Time { return current })

	first, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if first.LowThreshold != 600 || first.HighRate != 0.04 {
		t.Fatalf("unexpected config %#v", first)
	}

	current = current.Add(4 * time.Minute)
	if _, err := store.GetTiers(ctx); err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected cached read within TTL, got %d fetches", repo.calls)
	}

	current = current.Add(2 * time.Minute)
	if _, err := store.GetTiers(ctx); err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if repo.calls != 2 {
		t.Fatalf("expected refetch after TTL expiry, got %d fetches", repo.calls)
	}
}

func TestTierStoreInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{row: repositories.TierConfigRow{
		LowThreshold: 500, LowRate: 0.12, MidThreshold: 2000, MidRate: 0.10, HighRate: 0.05,
	}}
	store := newTierStoreForTest(t, repo, func() time.Time { return now })

	if _, err := store.GetTiers(ctx); err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	store.Invalidate()

	repo.row.MidRate = 0.08
	updated, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if updated.MidRate != 0.08 {
		t.Fatalf("expected refetched mid rate 0.08, got %v", updated.MidRate)
	}
	if repo.calls != 2 {
		t.Fatalf("expected 2 fetches after invalidate, got %d", repo.calls)
	}
}

func TestTierStoreFetchFailureFallsBackToCacheThenDefaults(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{err: errors.New("backend unavailable")}
	store := newTierStoreForTest(t, repo, func() time.Time { return now })

	config, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if config != domain.DefaultCommissionTiers() {
		t.Fatalf("expected defaults on failure with empty cache, got %#v", config)
	}

	repo.err = nil
	repo.row = repositories.TierConfigRow{LowThreshold: 700, LowRate: 0.11, MidThreshold: 3000, MidRate: 0.09, HighRate: 0.03}
	fetched, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if fetched.LowThreshold != 700 {
		t.Fatalf("expected fetched config, got %#v", fetched)
	}

	store.Invalidate()
	repo.err = errors.New("backend unavailable")
	after, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	// Invalidate clears the cache entirely, so a failed refetch resolves to defaults.
	if after != domain.DefaultCommissionTiers() {
		t.Fatalf("expected defaults after invalidate and failed fetch, got %#v", after)
	}
}

func TestTierStoreStaleCacheSurvivesFetchFailure(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{row: repositories.TierConfigRow{
		LowThreshold: 450, LowRate: 0.13, MidThreshold: 1800, MidRate: 0.1, HighRate: 0.06,
	}}
	store := newTierStoreForTest(t, repo, func() time.Time { return current })

	if _, err := store.GetTiers(ctx); err != nil {
		t.Fatalf("GetTiers: %v", err)
	}

	current = current.Add(10 * time.Minute)
	repo.err = errors.New("backend unavailable")
	config, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if config.LowThreshold != 450 {
		t.Fatalf("expected stale cached config on failed refresh, got %#v", config)
	}
}

func TestTierStoreSanitisesMalformedRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{row: repositories.TierConfigRow{
		LowThreshold: -10, LowRate: 0, MidThreshold: 2500, MidRate: 0.09, HighRate: -1,
	}}
	store := newTierStoreForTest(t, repo, func() time.Time { return now })

	config, err := store.GetTiers(ctx)
	if err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	defaults := domain.DefaultCommissionTiers()
	if config.LowThreshold != defaults.LowThreshold || config.LowRate != defaults.LowRate || config.HighRate != defaults.HighRate {
		t.Fatalf("expected defaults substituted for malformed fields, got %#v", config)
	}
	if config.MidThreshold != 2500 || config.MidRate != 0.09 {
		t.Fatalf("expected valid fields preserved, got %#v", config)
	}
}

func TestTierStoreCachedTiersSync(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	repo := &fakeTierConfigRepo{row: repositories.TierConfigRow{
		LowThreshold: 800, LowRate: 0.15, MidThreshold: 4000, MidRate: 0.07, HighRate: 0.02,
	}}
	store := newTierStoreForTest(t, repo, func() time.Time { return now })

	if got := store.CachedTiersSync(); got != domain.DefaultCommissionTiers() {
		t.Fatalf("expected defaults before first fetch, got %#v", got)
	}
	if repo.calls != 0 {
		t.Fatalf("CachedTiersSync must never fetch, got %d calls", repo.calls)
	}

	if _, err := store.GetTiers(ctx); err != nil {
		t.Fatalf("GetTiers: %v", err)
	}
	if got := store.CachedTiersSync(); got.LowThreshold != 800 {
		t.Fatalf("expected cached config, got %#v", got)
	}
}
