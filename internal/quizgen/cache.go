package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"

	"github.com/pavelanni/adaptquiz/internal/model"
)

// Cache stores generated question lists by key. Implementations treat
// backend failures as misses.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.Question, bool)
	Set(ctx context.Context, key string, qs []model.Question)
}

// CacheKey builds the cache key for a generation request.
func CacheKey(topic string, tier model.Tier, count int) string {
	return fmt.Sprintf("%s-%d-%d", strings.ToLower(strings.TrimSpace(topic)), tier, count)
}

type memoryEntry struct {
	questions []model.Question
	storedAt  time.Time
}

// MemoryCache is a bounded in-process cache with per-entry expiry. When
// full it evicts the oldest inserted entry; lookups do not refresh age.
type MemoryCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewMemoryCache creates a cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryCache{lru: c, ttl: ttl, now: time.Now}, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]model.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	e := v.(memoryEntry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.lru.Remove(key)
		return nil, false
	}
	return append([]model.Question(nil), e.questions...), true
}

func (c *MemoryCache) Set(_ context.Context, key string, qs []model.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Remove first so a refreshed key counts as newest.
	c.lru.Remove(key)
	c.lru.Add(key, memoryEntry{questions: append([]model.Question(nil), qs...), storedAt: c.now()})
}

// Len returns the number of cached entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// RedisCache keeps question lists in Redis as JSON with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a cache over client. Keys are namespaced by prefix.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]model.Question, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var qs []model.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		slog.Warn("redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return qs, true
}

func (c *RedisCache) Set(ctx context.Context, key string, qs []model.Question) {
	data, err := json.Marshal(qs)
	if err != nil {
		slog.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		slog.Warn("redis cache set failed", "key", key, "error", err)
	}
}
