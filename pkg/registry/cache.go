package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shotpipe/shotpipe/pkg/observability"
)

// CachedStore decorates a Store with a two-level read cache: an in-process
// LRU (L1) in front of Redis (L2). Publish records are immutable once
// written, so GetPublish results cache indefinitely in L1 and with a TTL in
// Redis; LatestVersion is invalidated on every write for its (name, entity).
type CachedStore struct {
	store   Store
	redis   *redis.Client
	l1      *lru.Cache[string, *PublishedFile]
	ttl     time.Duration
	metrics *observability.Metrics
}

// CacheConfig configures the cache decorator.
type CacheConfig struct {
	RedisURL  string
	Password  string
	DB        int
	L1Entries int
	TTL       time.Duration
}

// DefaultCacheConfig returns sensible cache defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1Entries: 1024,
		TTL:       30 * time.Minute,
	}
}

// NewCachedStore wraps a store with the caching layer.
func NewCachedStore(store Store, cfg CacheConfig, metrics *observability.Metrics) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	entries := cfg.L1Entries
	if entries <= 0 {
		entries = 1024
	}
	l1, err := lru.New[string, *PublishedFile](entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &CachedStore{
		store:   store,
		redis:   client,
		l1:      l1,
		ttl:     ttl,
		metrics: metrics,
	}, nil
}

// Close closes the Redis connection.
func (c *CachedStore) Close() error {
	return c.redis.Close()
}

// CreatePublish writes through to the store and invalidates the latest
// version key for the record's (name, entity).
func (c *CachedStore) CreatePublish(ctx context.Context, pf *PublishedFile) error {
	if err := c.store.CreatePublish(ctx, pf); err != nil {
		return err
	}
	c.redis.Del(ctx, latestKey(pf.Name, pf.Entity))
	return nil
}

// GetPublish reads through L1 and Redis before hitting the store.
func (c *CachedStore) GetPublish(ctx context.Context, id string) (*PublishedFile, error) {
	if pf, ok := c.l1.Get(id); ok {
		c.hit("l1")
		return pf, nil
	}
	c.miss("l1")

	key := publishKey(id)
	if data, err := c.redis.Get(ctx, key).Result(); err == nil {
		var pf PublishedFile
		if err := json.Unmarshal([]byte(data), &pf); err != nil {
			// Corrupt entry: drop it and fall through to the store.
			c.redis.Del(ctx, key)
		} else {
			c.hit("redis")
			c.l1.Add(id, &pf)
			return &pf, nil
		}
	}
	c.miss("redis")

	pf, err := c.store.GetPublish(ctx, id)
	if err != nil {
		return nil, err
	}

	c.l1.Add(id, pf)
	if data, err := json.Marshal(pf); err == nil {
		c.redis.Set(ctx, key, data, c.ttl)
	}
	return pf, nil
}

// ListPublishes passes through to the store; entity listings change on every
// publish and are not worth caching.
func (c *CachedStore) ListPublishes(ctx context.Context, entity string) ([]*PublishedFile, error) {
	return c.store.ListPublishes(ctx, entity)
}

// ListVersions passes through to the store.
func (c *CachedStore) ListVersions(ctx context.Context, name, entity string) ([]*PublishedFile, error) {
	return c.store.ListVersions(ctx, name, entity)
}

// ListEntities delegates to the underlying store. This keeps the cached
// store usable for retention sweeps, whose deletions then evict cached
// records instead of bypassing the cache.
func (c *CachedStore) ListEntities(ctx context.Context) ([]string, error) {
	lister, ok := c.store.(EntityLister)
	if !ok {
		return nil, fmt.Errorf("underlying store does not support entity listing")
	}
	return lister.ListEntities(ctx)
}

// LatestVersion reads through Redis before hitting the store.
func (c *CachedStore) LatestVersion(ctx context.Context, name, entity string) (int, error) {
	key := latestKey(name, entity)
	if val, err := c.redis.Get(ctx, key).Int(); err == nil {
		c.hit("redis")
		return val, nil
	}
	c.miss("redis")

	latest, err := c.store.LatestVersion(ctx, name, entity)
	if err != nil {
		return 0, err
	}
	c.redis.Set(ctx, key, latest, c.ttl)
	return latest, nil
}

// DeletePublish removes the record and evicts it from both cache layers.
func (c *CachedStore) DeletePublish(ctx context.Context, id string) error {
	if err := c.store.DeletePublish(ctx, id); err != nil {
		return err
	}
	c.l1.Remove(id)
	c.redis.Del(ctx, publishKey(id))
	return nil
}

// HealthCheck verifies both Redis and the underlying store.
func (c *CachedStore) HealthCheck(ctx context.Context) error {
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unhealthy: %w", err)
	}
	return c.store.HealthCheck(ctx)
}

func (c *CachedStore) hit(layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *CachedStore) miss(layer string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}

func publishKey(id string) string {
	return "publish:" + id
}

func latestKey(name, entity string) string {
	return fmt.Sprintf("latest:%s:%s", entity, name)
}
