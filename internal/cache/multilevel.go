package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

// MultiLevelCache reads through a process-local L1 to an optional shared L2.
// L2 calls go through a Breaker so a dead Redis costs one failed call per
// cooldown instead of one per request.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      Cache
	breaker *Breaker
	l1TTL   time.Duration
	metrics *Metrics
}

type MultiLevelConfig struct {
	L1Entries int
	L1TTL     time.Duration
	Breaker   BreakerConfig
}

func NewMultiLevelCache(l2 Cache, cfg MultiLevelConfig) *MultiLevelCache {
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = 30 * time.Second
	}
	return &MultiLevelCache{
		l1:      NewMemoryCache(cfg.L1Entries),
		l2:      l2,
		breaker: NewBreaker(cfg.Breaker),
		l1TTL:   cfg.L1TTL,
		metrics: &Metrics{},
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	l1TTL := c.l1TTL
	if ttl > 0 && ttl < l1TTL {
		l1TTL = ttl
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		c.metrics.Error()
		return err
	}
	c.metrics.Set()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Do(func() error { return c.l2.Set(ctx, key, value, ttl) })
	if err != nil {
		c.metrics.Error()
	}
	return err
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.l1.Get(ctx, key, dest); err == nil {
		c.metrics.Hit()
		return nil
	}

	if c.l2 == nil {
		c.metrics.Miss()
		return ErrCacheMiss
	}

	err := c.breaker.Do(func() error { return c.l2.Get(ctx, key, dest) })
	switch {
	case err == nil:
		c.metrics.Hit()
		if setErr := c.l1.Set(ctx, key, dest, c.l1TTL); setErr != nil {
			log.Printf("[cache] failed to promote %s to L1: %v", key, setErr)
		}
		return nil
	case errors.Is(err, ErrCacheMiss):
		c.metrics.Miss()
		return ErrCacheMiss
	default:
		c.metrics.Error()
		return err
	}
}

// Delete always clears L1, even when L2 is unreachable.
func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	c.metrics.Invalidate()

	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Do(func() error { return c.l2.Delete(ctx, keys...) })
	if err != nil {
		c.metrics.Error()
	}
	return err
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Health(ctx)
}

func (c *MultiLevelCache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

func (c *MultiLevelCache) BreakerState() BreakerState {
	return c.breaker.State()
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}
