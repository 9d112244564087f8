// Package phonemeta caches the downstream phone-number metadata lookup
// behind a Redis TTL, avoiding a listPhoneNumbers round trip on every
// webhook reconciliation.
package phonemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/acme/crm-telephony-sync/internal/domain"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached metadata map for an integration, or nil if absent
// or expired.
func (c *Cache) Get(ctx context.Context, integrationID string) (map[string]domain.PhoneMetadata, error) {
	raw, err := c.client.Get(ctx, key(integrationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("phonemeta: get: %w", err)
	}
	var out map[string]domain.PhoneMetadata
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("phonemeta: decode: %w", err)
	}
	return out, nil
}

// Set caches the metadata map for an integration with the configured TTL.
func (c *Cache) Set(ctx context.Context, integrationID string, meta map[string]domain.PhoneMetadata) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("phonemeta: encode: %w", err)
	}
	if err := c.client.Set(ctx, key(integrationID), encoded, c.ttl).Err(); err != nil {
		return fmt.Errorf("phonemeta: set: %w", err)
	}
	return nil
}

func key(integrationID string) string {
	return fmt.Sprintf("sync:integration:%s:phone-metadata", integrationID)
}
