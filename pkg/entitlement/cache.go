package entitlement

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/modulink/pkg/storage/postgres"
)

// Cache stores access decisions per tenant. Entries are keyed under the
// tenant's current generation; Invalidate bumps the generation so every
// older entry becomes unreachable at once.
//
// A value computed before an invalidation is written under the generation
// read before the query, so a racing mutation can never be masked.
type Cache interface {
	Generation(ctx context.Context, tenantID int64) (uint64, error)
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Invalidate(ctx context.Context, tenantID int64) error
	Name() string
}

func decisionKey(tenantID int64, gen uint64, userID, moduleID int64) string {
	return fmt.Sprintf("t%d:g%d:access:u%d:m%d", tenantID, gen, userID, moduleID)
}

func accessibleKey(tenantID int64, gen uint64, userID int64) string {
	return fmt.Sprintf("t%d:g%d:modules:u%d", tenantID, gen, userID)
}

// NoCache disables caching
type NoCache struct{}

func (NoCache) Generation(context.Context, int64) (uint64, error) { return 0, nil }
func (NoCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (NoCache) Set(context.Context, string, interface{}) error { return nil }
func (NoCache) Invalidate(context.Context, int64) error { return nil }
func (NoCache) Name() string { return "none" }

// MemoryCache is a process-local LRU with per-entry expiry. Use it only
// when a single replica serves a tenant; other replicas never see its
// invalidations.
type MemoryCache struct {
	entries *lru.LRU[string, []byte]

	mu          sync.Mutex
	generations map[int64]uint64
}

// NewMemoryCache creates a cache holding at most size entries for ttl
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{
		entries:     lru.NewLRU[string, []byte](size, nil, ttl),
		generations: make(map[int64]uint64),
	}
}

func (c *MemoryCache) Generation(_ context.Context, tenantID int64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[tenantID], nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := c.entries.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.entries.Remove(key)
		return false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	c.entries.Add(key, data)
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, tenantID int64) error {
	c.mu.Lock()
	c.generations[tenantID]++
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Name() string { return "memory" }

// Len returns the number of live entries, including unreachable ones that
// have not expired yet
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}

// RedisCache shares decisions between replicas. Generation counters live
// without expiry; entries expire after ttl.
type RedisCache struct {
	client *postgres.RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache whose keys start with prefix
func NewRedisCache(client *postgres.RedisClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "modulink"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) generationKey(tenantID int64) string {
	return c.prefix + ":gen:" + strconv.FormatInt(tenantID, 10)
}

func (c *RedisCache) Generation(ctx context.Context, tenantID int64) (uint64, error) {
	gen, err := c.client.GetInt64(ctx, c.generationKey(tenantID))
	if err != nil {
		return 0, err
	}
	return uint64(gen), nil
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	return c.client.GetJSON(ctx, c.prefix+":"+key, dest)
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}) error {
	return c.client.SetJSON(ctx, c.prefix+":"+key, value, c.ttl)
}

func (c *RedisCache) Invalidate(ctx context.Context, tenantID int64) error {
	_, err := c.client.Incr(ctx, c.generationKey(tenantID))
	return err
}

func (c *RedisCache) Name() string { return "redis" }
