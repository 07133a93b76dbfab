package redis

import (
	"context"
	"fmt"

	"nft-marketplace/internal/domain"

	"github.com/go-redis/redis/v8"
)

// StateCache mirrors each asset's listing mode so off-engine readers can
// answer "is this asset listed, and how" without touching the engine.
type StateCache struct {
	client *redis.Client
}

func NewStateCache(client *redis.Client) *StateCache {
	return &StateCache{client: client}
}

func modeKey(assetID string) string {
	return fmt.Sprintf("listing:%s:mode", assetID)
}

func (c *StateCache) SetListingMode(ctx context.Context, assetID string, mode domain.ListingMode) error {
	return c.client.Set(ctx, modeKey(assetID), string(mode), 0).Err()
}

func (c *StateCache) ClearListing(ctx context.Context, assetID string) error {
	return c.client.Del(ctx, modeKey(assetID)).Err()
}

func (c *StateCache) GetListingMode(ctx context.Context, assetID string) (domain.ListingMode, error) {
	result, err := c.client.Get(ctx, modeKey(assetID)).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.ModeNone, nil
		}
		return domain.ModeNone, err
	}
	return domain.ListingMode(result), nil
}
