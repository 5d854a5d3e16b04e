package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketloop/api/internal/domain"
	"github.com/marketloop/api/internal/repositories"
)

type fakeProfileRepo struct {
	profile repositories.SellerProfile
	err     error
}

func (f *fakeProfileRepo) FindByID(ctx context.Context, sellerID string) (repositories.SellerProfile, error) {
	if f.err != nil {
		return repositories.SellerProfile{}, f.err
	}
	return f.profile, nil
}

type fakeRatingRepo struct {
	ratings []float64
	err     error
}

func (f *fakeRatingRepo) ListBySeller(ctx context.Context, sellerID string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ratings, nil
}

type fakeOrderRepo struct {
	count int
	err   error
}

func (f *fakeOrderRepo) CountDelivered(ctx context.Context, sellerID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

type fakeMessageStatsRepo struct {
	stats repositories.MessageStats
	err   error
}

func (f *fakeMessageStatsRepo) StatsBySeller(ctx context.Context, sellerID string) (repositories.MessageStats, error) {
	if f.err != nil {
		return repositories.MessageStats{}, f.err
	}
	return f.stats, nil
}

func newAggregatorForTest(t *testing.T, deps SignalAggregatorDeps) *SignalAggregator {
	t.Helper()
	if deps.Profiles == nil {
		deps.Profiles = &fakeProfileRepo{}
	}
	if deps.Ratings == nil {
		deps.Ratings = &fakeRatingRepo{}
	}
	if deps.Orders == nil {
		deps.Orders = &fakeOrderRepo{}
	}
	if deps.Messages == nil {
		deps.Messages = &fakeMessageStatsRepo{}
	}
	aggregator, err := NewSignalAggregator(deps)
	if err != nil {
		t.Fatalf("NewSignalAggregator: %v", err)
	}
	return aggregator
}

func TestSignalAggregatorCollectsAllSources(t *testing.T) {
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	avgReply := 20.0
	aggregator := newAggregatorForTest(t, SignalAggregatorDeps{
		Profiles: &fakeProfileRepo{profile: repositories.SellerProfile{
			ID: "seller-1", IsVerified: true, VerificationStatus: domain.VerificationVerified, CreatedAt: created,
		}},
		Ratings:  &fakeRatingRepo{ratings: []float64{5, 4.5, 4.8}},
		Orders:   &fakeOrderRepo{count: 42},
		Messages: &fakeMessageStatsRepo{stats: repositories.MessageStats{TotalSent: 120, AvgResponseMinutes: &avgReply}},
	})

	signals, err := aggregator.Collect(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !signals.IsVerified || signals.VerificationStatus != domain.VerificationVerified {
		t.Fatalf("unexpected verification signals %#v", signals)
	}
	if len(signals.Ratings) != 3 || signals.CompletedOrderCount != 42 {
		t.Fatalf("unexpected signals %#v", signals)
	}
	if signals.AvgResponseMinutes == nil || *signals.AvgResponseMinutes != 20 {
		t.Fatalf("unexpected response minutes %#v", signals.AvgResponseMinutes)
	}
	if !signals.AccountCreatedAt.Equal(created) {
		t.Fatalf("unexpected created at %v", signals.AccountCreatedAt)
	}
}

func TestSignalAggregatorDegradesPerSource(t *testing.T) {
	backendDown := errors.New("backend unavailable")
	var logged []string
	aggregator := newAggregatorForTest(t, SignalAggregatorDeps{
		Profiles: &fakeProfileRepo{err: backendDown},
		Ratings:  &fakeRatingRepo{err: backendDown},
		Orders:   &fakeOrderRepo{count: 7},
		Messages: &fakeMessageStatsRepo{stats: repositories.MessageStats{TotalSent: 3}},
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			source, _ := fields["source"].(string)
			logged = append(logged, event+":"+source)
		},
	})

	signals, err := aggregator.Collect(context.Background(), "seller-1")
	if err != nil {
		t.Fatalf("Collect must not fail on degraded sources: %v", err)
	}
	if signals.IsVerified || len(signals.Ratings) != 0 {
		t.Fatalf("degraded sources must yield zero values, got %#v", signals)
	}
	if signals.CompletedOrderCount != 7 || signals.TotalMessagesSent != 3 {
		t.Fatalf("healthy sources must still be collected, got %#v", signals)
	}
	if len(logged) != 2 {
		t.Fatalf("expected 2 degradation log entries, got %v", logged)
	}
}

func TestSignalAggregatorRejectsBlankSellerID(t *testing.T) {
	aggregator := newAggregatorForTest(t, SignalAggregatorDeps{})
	if _, err := aggregator.Collect(context.Background(), "  "); !errors.Is(err, ErrSignalInvalidInput) {
		t.Fatalf("expected ErrSignalInvalidInput, got %v", err)
	}
}
