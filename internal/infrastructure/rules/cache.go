package rules

import (
	"context"
	"sync"
	"time"

	"fraud-risk-engine/internal/domain/fraud"
)

// ActiveRuleSource lists the currently active rules
type ActiveRuleSource interface {
	ListActive(ctx context.Context) ([]*fraud.FraudRule, error)
}

// RuleCache keeps the active rule set in memory for a TTL. It implements
// fraud.RuleCache so rule mutations can drop it immediately.
type RuleCache struct {
	source ActiveRuleSource
	ttl    time.Duration
	now    func() time.Time

	mu          sync.RWMutex
	rules       []*fraud.FraudRule
	lastRefresh time.Time
}

// NewRuleCache creates a cache. A zero TTL disables caching.
func NewRuleCache(source ActiveRuleSource, ttl time.Duration) *RuleCache {
	return &RuleCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

// ActiveRules returns the cached rules, reloading them when stale
func (c *RuleCache) ActiveRules(ctx context.Context) ([]*fraud.FraudRule, error) {
	c.mu.RLock()
	if c.fresh() {
		rules := c.rules
		c.mu.RUnlock()
		return rules, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.fresh() {
		return c.rules, nil
	}

	rules, err := c.source.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	c.rules = rules
	c.lastRefresh = c.now()
	return rules, nil
}

// Invalidate forces the next read to reload
func (c *RuleCache) Invalidate() {
	c.mu.Lock()
	c.rules = nil
	c.mu.Unlock()
}

func (c *RuleCache) fresh() bool {
	return c.rules != nil && c.ttl > 0 && c.now().Sub(c.lastRefresh) < c.ttl
}
