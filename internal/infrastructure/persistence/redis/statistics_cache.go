package redis

import (
	"context"
	"errors"
	"time"

	"github.com/calculus-oom/gradebook/internal/application/query"
	"github.com/calculus-oom/gradebook/pkg/circuitbreaker"
)

// StatisticsCache keeps computed slot statistics under
// stats:{term}:{slot}:{binWidth}.
type StatisticsCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker // optional
}

var _ query.StatisticsCache = (*StatisticsCache)(nil)

// NewStatisticsCache creates a statistics cache with the given entry TTL.
func NewStatisticsCache(cache *Cache, ttl time.Duration) *StatisticsCache {
	if ttl <= 0 {
		ttl = TTLStatistics
	}
	return &StatisticsCache{cache: cache, ttl: ttl}
}

// WithBreaker guards reads and writes with cb. While it is open they fail
// fast with circuitbreaker.ErrCircuitOpen. Invalidation always reaches Redis.
func (c *StatisticsCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *StatisticsCache {
	c.breaker = cb
	return c
}

func (c *StatisticsCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// Get returns the cached result, or nil on a miss.
func (c *StatisticsCache) Get(ctx context.Context, term, slot string, binWidth int) (*query.SlotStatistics, error) {
	var (
		stats query.SlotStatistics
		hit   bool
	)
	err := c.guard(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, StatsKey(term, slot, binWidth), &stats)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		hit = err == nil
		return err
	})
	if err != nil || !hit {
		return nil, err
	}
	return &stats, nil
}

// Set stores a result.
func (c *StatisticsCache) Set(ctx context.Context, stats *query.SlotStatistics) error {
	if stats == nil {
		return ErrCacheNilValue
	}
	return c.guard(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, StatsKey(stats.Term, stats.Slot, stats.BinWidth), stats, c.ttl)
	})
}

// InvalidateTerm drops every cached result of term.
func (c *StatisticsCache) InvalidateTerm(ctx context.Context, term string) error {
	_, err := c.cache.DeleteByPattern(ctx, StatsTermPattern(term))
	return err
}
