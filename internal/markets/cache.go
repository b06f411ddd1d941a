package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/pechasssmaxx/polyfive-arena/pkg/cache"
	"github.com/pechasssmaxx/polyfive-arena/pkg/types"
)

// CachedClient wraps Client with a cache for token reverse lookups. Token
// to market bindings are immutable, so a long TTL is safe. Market rows
// themselves are never cached here: resolution polling needs fresh
// outcome prices.
type CachedClient struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedClient creates a cached Gamma client. A zero ttl defaults to
// one hour.
func NewCachedClient(client *Client, c cache.Cache, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedClient{
		client: client,
		cache:  c,
		ttl:    ttl,
	}
}

// MarketByCondition fetches the market row for one condition id, uncached.
func (c *CachedClient) MarketByCondition(ctx context.Context, conditionID string) (*types.GammaMarket, error) {
	return c.client.MarketByCondition(ctx, conditionID)
}

// MarketsByConditions fetches market rows for a batch of condition ids,
// uncached.
func (c *CachedClient) MarketsByConditions(ctx context.Context, conditionIDs []string) (map[string]*types.GammaMarket, error) {
	return c.client.MarketsByConditions(ctx, conditionIDs)
}

// RefByToken resolves a conditional token id to its market slot, serving
// repeated lookups from the cache.
func (c *CachedClient) RefByToken(ctx context.Context, tokenID string) (*types.MarketRef, *types.GammaMarket, error) {
	cacheKey := fmt.Sprintf("token:%s", tokenID)

	if c.cache != nil {
		if cached, ok := c.cache.Get(cacheKey); ok {
			if ref, ok := cached.(*types.MarketRef); ok {
				TokenCacheHitsTotal.Inc()
				market, err := c.client.MarketByCondition(ctx, ref.ConditionID)
				if err != nil {
					return nil, nil, err
				}
				return ref, market, nil
			}
		}
		TokenCacheMissesTotal.Inc()
	}

	ref, market, err := c.client.RefByToken(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, ref, c.ttl)
	}

	return ref, market, nil
}
