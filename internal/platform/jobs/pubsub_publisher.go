package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/marketloop/api/internal/services"
)

// PubSubTierEventPublisher publishes commission tier change events to a Pub/Sub topic.
type PubSubTierEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubTierEventPublisher constructs a Pub/Sub backed tier event publisher.
func NewPubSubTierEventPublisher(topic *pubsub.Topic) (*PubSubTierEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub tier event publisher: topic is required")
	}
	return &PubSubTierEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishTiersUpdated enqueues a tiers-updated event on the configured topic.
func (p *PubSubTierEventPublisher) PublishTiersUpdated(ctx context.Context, message services.TiersUpdatedMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub tier event publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal tiers updated event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", message.EventID)
	setAttr(attrs, "eventType", message.EventType)
	setAttr(attrs, "configId", message.ConfigID)
	setAttr(attrs, "updatedBy", message.UpdatedBy)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish tiers updated event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
