package universe

import (
	"context"
	"time"

	"github.com/TMG-TheMoneyGame/AShareData/internal/contracts"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/logger"
	"github.com/TMG-TheMoneyGame/AShareData/pkg/redis"
)

// CachedSelector memoizes another selector's eligible sets in Redis.
// Cache failures fall through to the wrapped selector.
type CachedSelector struct {
	next  contracts.Selector
	cache *redis.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// Compile-time interface check.
var _ contracts.Selector = (*CachedSelector)(nil)

// NewCachedSelector wraps next
func NewCachedSelector(next contracts.Selector, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSelector {
	return &CachedSelector{next: next, cache: cache, ttl: ttl, log: log}
}

// Policy returns the wrapped selector's policy
func (c *CachedSelector) Policy() contracts.SelectionPolicy {
	return c.next.Policy()
}

// Eligible implements contracts.Selector
func (c *CachedSelector) Eligible(ctx context.Context, date time.Time) ([]string, error) {
	policy := c.next.Policy()
	key := redis.EligibleKey(policy.Name, policy.Fingerprint(), contracts.Day(date))

	var cached []string
	found, err := c.cache.Get(ctx, key, &cached)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("selector cache read failed")
	}
	if found {
		return cached, nil
	}

	ids, err := c.next.Eligible(ctx, date)
	if err != nil {
		return nil, err
	}

	if ids == nil {
		ids = []string{}
	}
	if err := c.cache.Set(ctx, key, ids, c.ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("selector cache write failed")
	}
	return ids, nil
}
