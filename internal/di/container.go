package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/marketloop/api/internal/platform/auth"
	"github.com/marketloop/api/internal/platform/config"
	"github.com/marketloop/api/internal/platform/jobs"
	"github.com/marketloop/api/internal/platform/requestctx"
	"github.com/marketloop/api/internal/repositories"
	"github.com/marketloop/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Tiers       services.TierProvider
	Commission  services.CommissionService
	Signals     services.SignalCollector
	TrustScores services.TrustScoreService
	TierAdmin   services.TierAdminService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Authn        *auth.Authenticator

	pubsubClient *pubsub.Client
	tiersTopic   *pubsub.Topic
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	container := &Container{
		Config:       cfg,
		Repositories: reg,
	}

	if cfg.Firebase.ProjectID != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		container.Authn = auth.NewAuthenticator(verifier)
	}

	var publisher services.TierEventPublisher
	if cfg.Events.ProjectID != "" && cfg.Events.TiersTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		container.pubsubClient = client
		container.tiersTopic = client.Topic(cfg.Events.TiersTopic)

		pub, err := jobs.NewPubSubTierEventPublisher(container.tiersTopic)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("build tier event publisher: %w", err)
		}
		publisher = pub
	}

	svc, err := buildServices(reg, cfg, publisher)
	if err != nil {
		if container.pubsubClient != nil {
			_ = container.pubsubClient.Close()
		}
		return nil, err
	}
	container.Services = svc

	return container, nil
}

// Close releases resources such as repository clients and the event publisher.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.tiersTopic != nil {
		c.tiersTopic.Stop()
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, cfg config.Config, publisher services.TierEventPublisher) (Services, error) {
	var svc Services

	tierStore, err := services.NewTierStore(services.TierStoreDeps{
		Repo:   reg.TierConfigs(),
		TTL:    cfg.Commission.CacheTTL,
		Now:    time.Now,
		Logger: contextEventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build tier store: %w", err)
	}
	svc.Tiers = tierStore

	commission, err := services.NewCommissionCalculator(services.CommissionCalculatorDeps{
		Tiers: tierStore,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build commission calculator: %w", err)
	}
	svc.Commission = commission

	if cfg.Features.EnableTrustScores {
		aggregator, err := services.NewSignalAggregator(services.SignalAggregatorDeps{
			Profiles: reg.SellerProfiles(),
			Ratings:  reg.Ratings(),
			Orders:   reg.Orders(),
			Messages: reg.MessageStats(),
			Logger:   contextEventLogger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build signal aggregator: %w", err)
		}
		svc.Signals = aggregator

		trustScores, err := services.NewTrustScoreCalculator(services.TrustScoreCalculatorDeps{
			Signals: aggregator,
			Now:     time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build trust score calculator: %w", err)
		}
		svc.TrustScores = trustScores
	}

	tierAdmin, err := services.NewTierAdmin(services.TierAdminDeps{
		Repo:      reg.TierConfigs(),
		Tiers:     tierStore,
		Publisher: publisher,
		Now:       time.Now,
		Logger:    contextEventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build tier admin: %w", err)
	}
	svc.TierAdmin = tierAdmin

	return svc, nil
}

// contextEventLogger bridges the services' plain logging callback onto the
// request-scoped zap logger.
func contextEventLogger(ctx context.Context, event string, fields map[string]any) {
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	requestctx.Logger(ctx).Warn(event, zapFields...)
}
