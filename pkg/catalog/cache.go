package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pluginverse/storefront/pkg/observability"
)

const listCacheKey = "plugins:list"

// Cache layers a small in-process LRU and Redis in front of the catalog
// reads. The catalog is read-mostly; admin writes and purchases invalidate.
type Cache struct {
	svc     *Service
	redis   *redis.Client
	local   *lru.Cache[string, []byte]
	ttl     map[string]time.Duration
	metrics *observability.Metrics
}

// NewCache creates the cache layer and verifies the Redis connection
func NewCache(svc *Service, redisAddr, password string, metrics *observability.Metrics) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       0, // use default DB
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	local, err := lru.New[string, []byte](256)
	if err != nil {
		return nil, fmt.Errorf("failed to build local cache: %w", err)
	}

	return &Cache{
		svc:     svc,
		redis:   client,
		local:   local,
		ttl: map[string]time.Duration{
			"plugin": 15 * time.Minute,
			"list":   1 * time.Minute,
		},
		metrics: metrics,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.redis.Close()
}

// Client exposes the Redis client for health checks
func (c *Cache) Client() *redis.Client {
	return c.redis
}

// Get retrieves a catalog entry, consulting the local then Redis tiers
func (c *Cache) Get(ctx context.Context, id string) (*Plugin, error) {
	cacheKey := "plugin:" + id

	if data, ok := c.local.Get(cacheKey); ok {
		var plugin Plugin
		if err := json.Unmarshal(data, &plugin); err == nil {
			c.hit("local")
			return &plugin, nil
		}
	}

	cached, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var plugin Plugin
		if err := json.Unmarshal(cached, &plugin); err == nil {
			c.hit("redis")
			c.local.Add(cacheKey, cached)
			return &plugin, nil
		}
	}
	c.miss()

	plugin, err := c.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, cacheKey, plugin, c.ttl["plugin"])
	return plugin, nil
}

// List retrieves the catalog listing. Only the unfiltered default listing is
// cached; filtered requests go straight to the database.
func (c *Cache) List(ctx context.Context, req *ListRequest) ([]*Plugin, error) {
	if req.Search != "" || req.SortBy != "" || req.SortOrder != "" || req.Offset != 0 {
		return c.svc.List(ctx, req)
	}

	if data, ok := c.local.Get(listCacheKey); ok {
		var plugins []*Plugin
		if err := json.Unmarshal(data, &plugins); err == nil {
			c.hit("local")
			return plugins, nil
		}
	}

	cached, err := c.redis.Get(ctx, listCacheKey).Bytes()
	if err == nil {
		var plugins []*Plugin
		if err := json.Unmarshal(cached, &plugins); err == nil {
			c.hit("redis")
			c.local.Add(listCacheKey, cached)
			return plugins, nil
		}
	}
	c.miss()

	plugins, err := c.svc.List(ctx, req)
	if err != nil {
		return nil, err
	}
	c.store(ctx, listCacheKey, plugins, c.ttl["list"])
	return plugins, nil
}

// Create delegates to the catalog service and invalidates the listing
func (c *Cache) Create(ctx context.Context, req *CreateRequest) (*Plugin, error) {
	plugin, err := c.svc.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, listCacheKey)
	return plugin, nil
}

// Update delegates to the catalog service and invalidates the entry and
// the listing
func (c *Cache) Update(ctx context.Context, id string, req *UpdateRequest) (*Plugin, error) {
	plugin, err := c.svc.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "plugin:"+id, listCacheKey)
	return plugin, nil
}

// Delete delegates to the catalog service and invalidates the entry and
// the listing
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.svc.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, "plugin:"+id, listCacheKey)
	return nil
}

// Invalidate drops a plugin's cached entry and the cached listing. The
// purchase flow calls this after bumping a download counter.
func (c *Cache) Invalidate(ctx context.Context, id string) {
	c.invalidate(ctx, "plugin:"+id, listCacheKey)
}

func (c *Cache) store(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.local.Add(key, data)
	c.redis.Set(ctx, key, data, ttl)
}

func (c *Cache) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Remove(key)
	}
	c.redis.Del(ctx, keys...)
}

func (c *Cache) hit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
	}
}
