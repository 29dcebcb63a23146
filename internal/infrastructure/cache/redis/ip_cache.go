package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fraud-risk-engine/internal/domain/fraud"
)

const ipCachePrefix = "fraud:ip:"

// IPCache is a read-through Redis front for IP intelligence.
// Redis failures fall through to the backing store.
type IPCache struct {
	client  *Client
	backing fraud.IPIntelligenceRepository
}

// NewIPCache wraps a backing IP intelligence store
func NewIPCache(client *Client, backing fraud.IPIntelligenceRepository) *IPCache {
	return &IPCache{client: client, backing: backing}
}

// Get returns the verdict for ip, or nil when neither layer has it
func (c *IPCache) Get(ctx context.Context, ip string) (*fraud.IPIntelligence, error) {
	raw, err := c.client.rdb.Get(ctx, ipCachePrefix+ip).Bytes()
	if err == nil {
		var intel fraud.IPIntelligence
		if json.Unmarshal(raw, &intel) == nil {
			return &intel, nil
		}
	}

	intel, err := c.backing.Get(ctx, ip)
	if err != nil || intel == nil {
		return intel, err
	}
	c.store(ctx, intel)
	return intel, nil
}

// Upsert writes the verdict to the backing store, then the cache
func (c *IPCache) Upsert(ctx context.Context, intel *fraud.IPIntelligence) error {
	if err := c.backing.Upsert(ctx, intel); err != nil {
		return fmt.Errorf("failed to store ip intelligence: %w", err)
	}
	c.store(ctx, intel)
	return nil
}

func (c *IPCache) store(ctx context.Context, intel *fraud.IPIntelligence) {
	ttl := time.Until(intel.ExpiresAt)
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(intel)
	if err != nil {
		return
	}
	_ = c.client.rdb.Set(ctx, ipCachePrefix+intel.IPAddress, raw, ttl).Err()
}
