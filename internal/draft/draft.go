// Package draft parks buffered reminders under an opaque token until
// the task they belong to is created.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/nhle/hotel-ops/internal/model"
)

// ErrNotFound is returned by Take for unknown or expired tokens.
var ErrNotFound = errors.New("draft not found or expired")

// DefaultTTL is used when a cache is created with a zero TTL.
const DefaultTTL = 2 * time.Hour

// Cache stores buffered reminders. Take is read-and-delete. Restore
// parks r under an existing token again with a fresh TTL.
type Cache interface {
	Put(ctx context.Context, r model.BufferedReminder) (token string, err error)
	Take(ctx context.Context, token string) (*model.BufferedReminder, error)
	Restore(ctx context.Context, token string, r model.BufferedReminder) error
}

// New returns the cache selected by cfg.Backend.
func New(ctx context.Context, cfg model.DraftsConfig) (Cache, error) {
	ttl := time.Duration(cfg.TTLMin) * time.Minute
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(ttl), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to redis %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisCache(client, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported drafts backend %q", cfg.Backend)
	}
}

type memoryEntry struct {
	reminder  model.BufferedReminder
	expiresAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, r model.BufferedReminder) (string, error) {
	token := uuid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[token] = memoryEntry{reminder: r, expiresAt: now.Add(c.ttl)}
	return token, nil
}

// Take implements Cache.
func (c *MemoryCache) Take(_ context.Context, token string) (*model.BufferedReminder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(c.entries, token)
	if c.now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	r := e.reminder
	return &r, nil
}

// Restore implements Cache.
func (c *MemoryCache) Restore(_ context.Context, token string, r model.BufferedReminder) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = memoryEntry{reminder: r, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// RedisCache stores drafts as JSON strings with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache backed by client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func redisKey(token string) string {
	return "hotelops:draft:" + token
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, r model.BufferedReminder) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshaling draft: %w", err)
	}

	token := uuid.New().String()
	if err := c.client.Set(ctx, redisKey(token), data, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing draft: %w", err)
	}
	return token, nil
}

// Take implements Cache.
func (c *RedisCache) Take(ctx context.Context, token string) (*model.BufferedReminder, error) {
	data, err := c.client.GetDel(ctx, redisKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading draft: %w", err)
	}

	var r model.BufferedReminder
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshaling draft: %w", err)
	}
	return &r, nil
}

// Restore implements Cache.
func (c *RedisCache) Restore(ctx context.Context, token string, r model.BufferedReminder) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(token), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("restoring draft: %w", err)
	}
	return nil
}

// Close releases the redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
