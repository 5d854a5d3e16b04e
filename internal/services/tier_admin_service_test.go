package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingTierProvider struct {
	staticTierProvider
	invalidations int
}

func (p *recordingTierProvider) Invalidate() { p.invalidations++ }

type fakeTierEventPublisher struct {
	published []TiersUpdatedMessage
	err       error
}

func (f *fakeTierEventPublisher) PublishTiersUpdated(ctx context.Context, message TiersUpdatedMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, message)
	return "msg-1", nil
}

func newTierAdminForTest(t *testing.T, deps TierAdminDeps) (*TierAdmin, *fakeTierConfigRepo, *recordingTierProvider) {
	t.Helper()
	repo, _ := deps.Repo.(*fakeTierConfigRepo)
	if repo == nil {
		repo = &fakeTierConfigRepo{}
		deps.Repo = repo
	}
	provider, _ := deps.Tiers.(*recordingTierProvider)
	if provider == nil {
		provider = &recordingTierProvider{}
		deps.Tiers = provider
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }
	}
	admin, err := NewTierAdmin(deps)
	if err != nil {
		t.Fatalf("NewTierAdmin: %v", err)
	}
	return admin, repo, provider
}

func validTiers() CommissionTierConfig {
	return CommissionTierConfig{LowThreshold: 600, LowRate: 0.14, MidThreshold: 2400, MidRate: 0.09, HighRate: 0.04}
}

func TestTierAdminUpdatePersistsInvalidatesAndPublishes(t *testing.T) {
	publisher := &fakeTierEventPublisher{}
	admin, repo, provider := newTierAdminForTest(t, TierAdminDeps{Publisher: publisher})

	result, err := admin.UpdateTiers(context.Background(), UpdateTiersCommand{
		Tiers:     validTiers(),
		UpdatedBy: "admin-uid",
	})
	if err != nil {
		t.Fatalf("UpdateTiers: %v", err)
	}

	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 inserted row, got %d", len(repo.inserted))
	}
	row := repo.inserted[0]
	if !strings.HasPrefix(row.ID, "tier_") {
		t.Fatalf("row id %q missing tier prefix", row.ID)
	}
	if row.CreatedBy != "admin-uid" || row.MidRate != 0.09 {
		t.Fatalf("unexpected row %#v", row)
	}

	if provider.invalidations != 1 {
		t.Fatalf("expected cache invalidation, got %d", provider.invalidations)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.published))
	}
	event := publisher.published[0]
	if event.EventType != "commission.tiers.updated" || event.ConfigID != row.ID {
		t.Fatalf("unexpected event %#v", event)
	}
	if result.EventID != event.EventID || result.ConfigID != row.ID {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestTierAdminPublishFailureDoesNotFailUpdate(t *testing.T) {
	publisher := &fakeTierEventPublisher{err: errors.New("broker down")}
	admin, _, provider := newTierAdminForTest(t, TierAdminDeps{Publisher: publisher})

	result, err := admin.UpdateTiers(context.Background(), UpdateTiersCommand{Tiers: validTiers()})
	if err != nil {
		t.Fatalf("UpdateTiers must tolerate publish failure: %v", err)
	}
	if result.EventID != "" {
		t.Fatalf("expected empty event id on publish failure, got %q", result.EventID)
	}
	if provider.invalidations != 1 {
		t.Fatalf("cache must still be invalidated, got %d", provider.invalidations)
	}
}

func TestTierAdminValidation(t *testing.T) {
	admin, repo, provider := newTierAdminForTest(t, TierAdminDeps{})

	cases := []struct {
		name  string
		tiers CommissionTierConfig
	}{
		{"zero low threshold", CommissionTierConfig{LowThreshold: 0, MidThreshold: 2000, LowRate: 0.1, MidRate: 0.1, HighRate: 0.05}},
		{"mid not above low", CommissionTierConfig{LowThreshold: 2000, MidThreshold: 2000, LowRate: 0.1, MidRate: 0.1, HighRate: 0.05}},
		{"rate above one", CommissionTierConfig{LowThreshold: 500, MidThreshold: 2000, LowRate: 1.2, MidRate: 0.1, HighRate: 0.05}},
		{"negative rate", CommissionTierConfig{LowThreshold: 500, MidThreshold: 2000, LowRate: 0.1, MidRate: -0.1, HighRate: 0.05}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := admin.UpdateTiers(context.Background(), UpdateTiersCommand{Tiers: tc.tiers}); !errors.Is(err, ErrTierAdminInvalidInput) {
				t.Fatalf("expected ErrTierAdminInvalidInput, got %v", err)
			}
		})
	}

	if len(repo.inserted) != 0 || provider.invalidations != 0 {
		t.Fatalf("rejected updates must not write or invalidate")
	}
}

func TestTierAdminInsertFailure(t *testing.T) {
	repo := &fakeTierConfigRepo{}
	admin, _, provider := newTierAdminForTest(t, TierAdminDeps{Repo: repo})
	repo.insertErr = errors.New("write denied")

	if _, err := admin.UpdateTiers(context.Background(), UpdateTiersCommand{Tiers: validTiers()}); !errors.Is(err, ErrTierAdminUnavailable) {
		t.Fatalf("expected ErrTierAdminUnavailable, got %v", err)
	}
	if provider.invalidations != 0 {
		t.Fatalf("failed writes must not invalidate the cache")
	}
}
