package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis read-through cache for session rows. Sessions are
// immutable, so entries never need invalidation; the TTL tracks the
// session expiry.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(id string) string { return "rollcall:session:" + id }

// Put stores the session until it expires. Best effort: callers treat
// failures as a miss, the database stays authoritative.
func (c *Cache) Put(ctx context.Context, s *Session) error {
	if c == nil || c.client == nil {
		return nil
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(s.ID), data, ttl).Err()
}

// Get returns the cached session, or nil on miss.
func (c *Cache) Get(ctx context.Context, id string) (*Session, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
