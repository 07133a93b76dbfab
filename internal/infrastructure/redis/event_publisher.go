package redis

import (
	"context"
	"encoding/json"

	"nft-marketplace/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventChannel = "marketplace_events"

type EventPublisher struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisher {
	return &EventPublisher{client: client}
}

func (p *EventPublisher) PublishListingEvent(ctx context.Context, event *domain.ListingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, eventChannel, payload).Err()
}
